// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package sync

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unmonitarr/unmonitarr/internal/models"
)

// In-memory fakes shared by the engine tests.

var errFakeNotFound = errors.New("action not found")

// memStore is an in-memory ActionLogStore.
type memStore struct {
	mu      sync.Mutex
	nextID  uint64
	actions map[uint64]models.SyncAction
}

func newMemStore() *memStore {
	return &memStore{actions: make(map[uint64]models.SyncAction)}
}

func (s *memStore) Append(action *models.SyncAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	action.ID = s.nextID
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}
	s.actions[action.ID] = *action
	return nil
}

func (s *memStore) Update(id uint64, mutate func(*models.SyncAction)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[id]
	if !ok {
		return errFakeNotFound
	}
	mutate(&a)
	s.actions[id] = a
	return nil
}

func (s *memStore) Get(id uint64) (*models.SyncAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[id]
	if !ok {
		return nil, errFakeNotFound
	}
	return &a, nil
}

func (s *memStore) countActions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actions)
}

func (s *memStore) ListByStatus(_ context.Context, status models.SyncStatus) ([]models.SyncAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SyncAction
	for _, a := range s.actions {
		if a.Status == status {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) FailedSince(_ context.Context, cutoff time.Time) ([]models.SyncAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SyncAction
	for _, a := range s.actions {
		if a.Status == models.StatusFailed && a.CreatedAt.After(cutoff) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeDownstream is a scriptable DownstreamClient. Candidates are keyed by
// normalized title; monitored state lives in a plain map by downstream id.
type fakeDownstream struct {
	service models.Service

	mu         sync.Mutex
	candidates map[string][]Candidate
	monitored  map[int64]bool
	findErr    error
	getErrs    []error // consumed one per GetMonitored call
	setErrs    []error // consumed one per SetMonitored call

	findCalls int
	getCalls  int
	setCalls  int

	latency     time.Duration
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeDownstream(service models.Service) *fakeDownstream {
	return &fakeDownstream{
		service:    service,
		candidates: make(map[string][]Candidate),
		monitored:  make(map[int64]bool),
	}
}

// addMovie registers a single movie candidate under its title.
func (f *fakeDownstream) addMovie(id int64, title string, monitored bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := normalizeTitle(title)
	f.candidates[key] = append(f.candidates[key], Candidate{
		Target: models.ResolvedTarget{
			Service:      f.service,
			DownstreamID: id,
			Kind:         models.MediaKindMovie,
			Title:        title,
		},
	})
	f.monitored[id] = monitored
}

func (f *fakeDownstream) addCandidate(c Candidate, monitored bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := normalizeTitle(c.Target.Title)
	f.candidates[key] = append(f.candidates[key], c)
	f.monitored[c.Target.DownstreamID] = monitored
}

func (f *fakeDownstream) Service() models.Service { return f.service }

func (f *fakeDownstream) FindCandidates(_ context.Context, md models.ItemMetadata) ([]Candidate, error) {
	f.track()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	title := md.Title
	if md.SeriesTitle != "" {
		title = md.SeriesTitle
	}
	return f.candidates[normalizeTitle(title)], nil
}

func (f *fakeDownstream) GetMonitored(_ context.Context, target models.ResolvedTarget) (bool, error) {
	f.track()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if len(f.getErrs) > 0 {
		err := f.getErrs[0]
		f.getErrs = f.getErrs[1:]
		if err != nil {
			return false, err
		}
	}
	return f.monitored[target.DownstreamID], nil
}

func (f *fakeDownstream) SetMonitored(_ context.Context, target models.ResolvedTarget, monitored bool) error {
	f.track()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if len(f.setErrs) > 0 {
		err := f.setErrs[0]
		f.setErrs = f.setErrs[1:]
		if err != nil {
			return err
		}
	}
	f.monitored[target.DownstreamID] = monitored
	return nil
}

// track records call concurrency so tests can assert per-item exclusion.
func (f *fakeDownstream) track() {
	n := f.inFlight.Add(1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.latency > 0 {
		time.Sleep(f.latency)
	}
	f.inFlight.Add(-1)
}

func (f *fakeDownstream) counts() (find, get, set int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findCalls, f.getCalls, f.setCalls
}

func (f *fakeDownstream) isMonitored(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.monitored[id]
}

// fakeMedia is a scriptable MediaServerClient.
type fakeMedia struct {
	mu       sync.Mutex
	items    []LibraryItem
	listErr  error
	metadata map[string]models.ItemMetadata
	getErr   error
	release  chan struct{} // when set, ListLibrary blocks until closed
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{metadata: make(map[string]models.ItemMetadata)}
}

func (f *fakeMedia) GetItemMetadata(_ context.Context, itemID string) (models.ItemMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return models.ItemMetadata{}, f.getErr
	}
	md, ok := f.metadata[itemID]
	if !ok {
		return models.ItemMetadata{}, errors.New("unknown item " + itemID)
	}
	return md, nil
}

func (f *fakeMedia) ListLibrary(ctx context.Context, _ models.BulkSyncType) ([]LibraryItem, error) {
	f.mu.Lock()
	release := f.release
	listErr := f.listErr
	items := make([]LibraryItem, len(f.items))
	copy(items, f.items)
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if listErr != nil {
		return nil, listErr
	}
	return items, nil
}

// fakeLookup returns fixed provider ids.
type fakeLookup struct {
	ids models.ProviderIDs
	err error
}

func (f *fakeLookup) Lookup(context.Context, string, int) (models.ProviderIDs, error) {
	if f.err != nil {
		return models.ProviderIDs{}, f.err
	}
	return f.ids, nil
}

// newTestDispatcher wires a dispatcher over fakes with fast retry and an
// effectively unlimited rate budget.
func newTestDispatcher(store ActionLogStore, lookup MetadataLookup, clients ...DownstreamClient) (*Dispatcher, *Resolver) {
	resolver := NewResolver(clients, lookup, nil, time.Minute, true)
	retry := NewRetryExecutor(3, time.Millisecond)
	limiter := newRateLimiter(time.Millisecond, 10000)
	return NewDispatcher(resolver, clients, retry, limiter, store, nil), resolver
}

// movieEvent builds a watch event for a movie title.
func movieEvent(itemID, title string, watched bool) models.WatchEvent {
	return models.WatchEvent{
		ItemID:     itemID,
		Watched:    watched,
		ObservedAt: time.Now().UTC(),
		Metadata: models.ItemMetadata{
			Title: title,
			Kind:  models.MediaKindMovie,
		},
	}
}
