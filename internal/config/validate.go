// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks that required configuration is present and consistent.
// Tag-level constraints run first, then cross-field rules that tags cannot
// express.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			ve := verrs[0]
			return fmt.Errorf("invalid config field %s: failed %q constraint", ve.Namespace(), ve.Tag())
		}
		return err
	}

	if !c.Sonarr.Enabled && !c.Radarr.Enabled {
		return errors.New("at least one of SONARR_ENABLED or RADARR_ENABLED must be true")
	}
	if err := c.validateArr("sonarr", c.Sonarr); err != nil {
		return err
	}
	if err := c.validateArr("radarr", c.Radarr); err != nil {
		return err
	}
	if c.OMDB.Enabled && c.OMDB.APIKey == "" {
		return errors.New("OMDB_API_KEY is required when OMDB_ENABLED=true")
	}
	return nil
}

func (c *Config) validateArr(name string, arr ArrConfig) error {
	if !arr.Enabled {
		return nil
	}
	upper := strings.ToUpper(name)
	if arr.URL == "" {
		return fmt.Errorf("%s_URL is required when %s_ENABLED=true", upper, upper)
	}
	if !strings.HasPrefix(arr.URL, "http://") && !strings.HasPrefix(arr.URL, "https://") {
		return fmt.Errorf("%s_URL must start with http:// or https://", upper)
	}
	if arr.APIKey == "" {
		return fmt.Errorf("%s_API_KEY is required when %s_ENABLED=true", upper, upper)
	}
	return nil
}
