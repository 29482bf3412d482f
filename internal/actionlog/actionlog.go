// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

// Package actionlog persists sync actions in BadgerDB. The log is
// append/update only: actions are never deleted, forming the audit trail
// that backs retry and idempotency.
//
// Keys are zero-padded decimal ids under a single prefix so lexicographic
// iteration order equals id order. Ids come from a Badger sequence and are
// monotonically increasing across restarts.
package actionlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/unmonitarr/unmonitarr/internal/logging"
	"github.com/unmonitarr/unmonitarr/internal/models"
)

// ErrNotFound is returned when no action exists for an id.
var ErrNotFound = errors.New("action not found")

const (
	actionPrefix = "action:"

	// actionSeekEnd sorts after every action key; used for reverse scans.
	// ';' is the byte after ':'.
	actionSeekEnd = "action;"

	seqKey       = "action_seq"
	seqBandwidth = 100
)

// Store is the durable action log. Safe for concurrent writers; per-item
// mutual exclusion is enforced by the dispatcher above the store, not here.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens (or creates) the store at path. An empty path opens an
// in-memory store, used by tests.
func Open(path string) (*Store, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
		opts.SyncWrites = true
	}
	// Badger's own logger is noisy; everything goes through zerolog instead.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open action log at %q: %w", path, err)
	}

	seq, err := db.GetSequence([]byte(seqKey), seqBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open action id sequence: %w", err)
	}

	logging.Info().Str("component", "actionlog").Str("path", path).Msg("action log opened")
	return &Store{db: db, seq: seq}, nil
}

// Close releases the id sequence and closes the database.
func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		logging.Warn().Err(err).Msg("failed to release action id sequence")
	}
	return s.db.Close()
}

func actionKey(id uint64) []byte {
	return fmt.Appendf(nil, "%s%020d", actionPrefix, id)
}

// Append assigns the action a new monotonic id and persists it. The
// action's CreatedAt is stamped if unset.
func (s *Store) Append(action *models.SyncAction) error {
	next, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to allocate action id: %w", err)
	}
	action.ID = next + 1 // sequence starts at 0, ids at 1
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal action %d: %w", action.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(actionKey(action.ID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to persist action %d: %w", action.ID, err)
	}
	return nil
}

// Update applies mutate to the stored action in one transaction.
func (s *Store) Update(id uint64, mutate func(*models.SyncAction)) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(actionKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var action models.SyncAction
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &action)
		}); err != nil {
			return fmt.Errorf("failed to decode action %d: %w", id, err)
		}

		mutate(&action)

		data, err := json.Marshal(&action)
		if err != nil {
			return fmt.Errorf("failed to marshal action %d: %w", id, err)
		}
		return txn.Set(actionKey(id), data)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to update action %d: %w", id, err)
	}
	return err
}

// Get returns the action with the given id, or ErrNotFound.
func (s *Store) Get(id uint64) (*models.SyncAction, error) {
	var action models.SyncAction
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(actionKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &action)
		})
	})
	if err != nil {
		return nil, err
	}
	return &action, nil
}

// ListByStatus returns all actions in the given status, in id order.
func (s *Store) ListByStatus(ctx context.Context, status models.SyncStatus) ([]models.SyncAction, error) {
	var actions []models.SyncAction
	err := s.scan(ctx, false, func(action models.SyncAction) bool {
		if action.Status == status {
			actions = append(actions, action)
		}
		return true
	})
	return actions, err
}

// ListRecent returns up to limit actions, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]models.SyncAction, error) {
	var actions []models.SyncAction
	err := s.scan(ctx, true, func(action models.SyncAction) bool {
		actions = append(actions, action)
		return len(actions) < limit
	})
	return actions, err
}

// FailedSince returns failed actions created at or after cutoff, in id
// order. Used by bulk retry.
func (s *Store) FailedSince(ctx context.Context, cutoff time.Time) ([]models.SyncAction, error) {
	var actions []models.SyncAction
	err := s.scan(ctx, false, func(action models.SyncAction) bool {
		if action.Status == models.StatusFailed && !action.CreatedAt.Before(cutoff) {
			actions = append(actions, action)
		}
		return true
	})
	return actions, err
}

// Counts returns the number of actions per status.
func (s *Store) Counts(ctx context.Context) (map[models.SyncStatus]int, error) {
	counts := make(map[models.SyncStatus]int)
	err := s.scan(ctx, false, func(action models.SyncAction) bool {
		counts[action.Status]++
		return true
	})
	return counts, err
}

// scan iterates all actions, decoding each and invoking fn until it
// returns false. Honors context cancellation between entries.
func (s *Store) scan(ctx context.Context, reverse bool, fn func(models.SyncAction) bool) error {
	prefix := []byte(actionPrefix)
	seek := prefix
	if reverse {
		seek = []byte(actionSeekEnd)
	}

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Reverse = reverse
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			var action models.SyncAction
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &action)
			}); err != nil {
				return fmt.Errorf("failed to decode action at %q: %w", it.Item().Key(), err)
			}
			if !fn(action) {
				return nil
			}
		}
		return nil
	})
}
