package client

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"rowshare-backend/internal/shared/telemetry"
)

// DefaultRefreshInterval is how often Run polls the server.
const DefaultRefreshInterval = 30 * time.Second

// API is the subset of Client the Store needs.
type API interface {
	Data(ctx context.Context, tableID string, showAll bool) (Dataset, error)
	Tables(ctx context.Context, showAll bool) ([]Table, error)
	Delete(ctx context.Context, id string) (string, error)
	Upload(ctx context.Context, filename string, data []byte) (UploadResult, error)
}

// State is a snapshot of the store.
type State struct {
	Data            []Row
	Columns         []string
	UploadDate      *time.Time
	TableName       *string
	Tables          []Table
	SelectedTableID string
	ShowAll         bool
	Loading         bool
	Err             error
}

// Store holds the client view of the shared dataset.
type Store struct {
	api      API
	interval time.Duration

	mu    sync.RWMutex
	state State
}

// NewStore creates an empty Store polling every DefaultRefreshInterval.
func NewStore(api API) *Store {
	return &Store{
		api:      api,
		interval: DefaultRefreshInterval,
		state:    State{Data: []Row{}, Columns: []string{}, Tables: []Table{}},
	}
}

// WithInterval overrides the polling interval.
func (s *Store) WithInterval(d time.Duration) *Store {
	if d > 0 {
		s.interval = d
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.Data = append([]Row(nil), s.state.Data...)
	st.Columns = append([]string(nil), s.state.Columns...)
	st.Tables = append([]Table(nil), s.state.Tables...)
	return st
}

// Refresh fetches tables and data together. A failure clears the dataset
// and records the error; it is also returned.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	tableID, showAll := s.state.SelectedTableID, s.state.ShowAll
	s.state.Loading = true
	s.mu.Unlock()

	var (
		ds     Dataset
		tables []Table
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tables, err = s.api.Tables(gctx, showAll)
		return err
	})
	g.Go(func() error {
		var err error
		ds, err = s.api.Data(gctx, tableID, showAll)
		return err
	})
	err := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = false
	if err != nil {
		telemetry.Warn("client.refresh_failed", map[string]any{"err": err})
		s.state.Data = []Row{}
		s.state.Columns = []string{}
		s.state.UploadDate = nil
		s.state.TableName = nil
		s.state.Tables = []Table{}
		s.state.Err = err
		return err
	}
	s.state.Data = nonNilRows(ds.Data)
	s.state.Columns = nonNilStrings(ds.Columns)
	s.state.UploadDate = ds.UploadDate
	s.state.TableName = ds.TableName
	s.state.Tables = tables
	s.state.Err = nil
	return nil
}

// Run refreshes immediately and then on every tick until ctx is done.
func (s *Store) Run(ctx context.Context) {
	_ = s.Refresh(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Refresh(ctx)
		}
	}
}

// Select switches to one table, or the merged view for "", and refreshes.
func (s *Store) Select(ctx context.Context, tableID string) error {
	s.mu.Lock()
	s.state.SelectedTableID = tableID
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// SetShowAll toggles the retention window bypass and refreshes.
func (s *Store) SetShowAll(ctx context.Context, showAll bool) error {
	s.mu.Lock()
	s.state.ShowAll = showAll
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// DeleteRow deletes a row on the server and drops it locally once confirmed.
// Blank ids and "all" are rejected; use DeleteAll to clear everything.
func (s *Store) DeleteRow(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" || strings.EqualFold(id, "all") {
		return ErrMissingRowID
	}
	if _, err := s.api.Delete(ctx, id); err != nil {
		s.setErr(err)
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]Row, 0, len(s.state.Data))
	for _, r := range s.state.Data {
		if r.ID() != id {
			kept = append(kept, r)
		}
	}
	s.state.Data = kept
	s.state.Err = nil
	return nil
}

// DeleteAll removes every row on the server and clears the local dataset.
func (s *Store) DeleteAll(ctx context.Context) error {
	if _, err := s.api.Delete(ctx, "all"); err != nil {
		s.setErr(err)
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Data = []Row{}
	s.state.Columns = []string{}
	s.state.UploadDate = nil
	s.state.TableName = nil
	s.state.Tables = []Table{}
	s.state.SelectedTableID = ""
	s.state.Err = nil
	return nil
}

// Upload sends a file and refreshes on success.
func (s *Store) Upload(ctx context.Context, filename string, data []byte) (UploadResult, error) {
	res, err := s.api.Upload(ctx, filename, data)
	if err != nil {
		s.setErr(err)
		return res, err
	}
	return res, s.Refresh(ctx)
}

func (s *Store) setErr(err error) {
	s.mu.Lock()
	s.state.Err = err
	s.mu.Unlock()
}

func nonNilRows(in []Row) []Row {
	if in == nil {
		return []Row{}
	}
	return in
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
