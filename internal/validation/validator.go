// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

// Package validation validates API request structs using
// go-playground/validator v10. A single shared validator instance caches
// struct metadata; RequestError translates field failures into the
// APIError shape the handlers respond with.
package validation

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

// FieldError is one failed constraint on one struct field.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Message string
}

func (e FieldError) Error() string { return e.Message }

// RequestError aggregates the field failures of one request struct.
type RequestError struct {
	Fields []FieldError
}

func (e *RequestError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// Details returns the error in the form the API error envelope carries.
func (e *RequestError) Details() map[string]any {
	if len(e.Fields) == 0 {
		return nil
	}
	if len(e.Fields) == 1 {
		f := e.Fields[0]
		return map[string]any{"field": f.Field, "tag": f.Tag}
	}
	fields := make([]map[string]any, len(e.Fields))
	for i, f := range e.Fields {
		fields[i] = map[string]any{"field": f.Field, "tag": f.Tag, "message": f.Message}
	}
	return map[string]any{"fields": fields}
}

// Validator returns the shared instance.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct validates s against its `validate` tags. Returns nil on
// success, a *RequestError on constraint failures.
func ValidateStruct(s any) *RequestError {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &RequestError{Fields: []FieldError{{Message: err.Error()}}}
	}

	out := &RequestError{Fields: make([]FieldError, 0, len(verrs))}
	for _, ve := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   ve.Field(),
			Tag:     ve.Tag(),
			Param:   ve.Param(),
			Message: fieldMessage(ve),
		})
	}
	return out
}

func fieldMessage(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", ve.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", ve.Field(), ve.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", ve.Field(), ve.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", ve.Field(), ve.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", ve.Field())
	default:
		return fmt.Sprintf("%s failed %q validation", ve.Field(), ve.Tag())
	}
}
