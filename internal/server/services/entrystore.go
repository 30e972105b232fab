// Package services contains the server-side business logic: the per-session
// entry store, the media upload workflow, and user authentication.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/common"
	"github.com/dmitrijs2005/journalkeeper/internal/dbx"
	"github.com/dmitrijs2005/journalkeeper/internal/logging"
	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
	"github.com/dmitrijs2005/journalkeeper/internal/server/notify"
	"github.com/dmitrijs2005/journalkeeper/internal/server/repositories/entries"
	"github.com/dmitrijs2005/journalkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// defaultListLimit is used for notification-triggered reloads that happen
// before the first explicit List call.
const defaultListLimit = 50

// EntryForm is the caller-supplied payload for creating an entry. Tags are
// expected deduplicated and lowercased by the caller.
type EntryForm struct {
	Title          string
	Text           string
	Tags           []string
	EntryDate      *time.Time
	LocationText   *string
	WeatherSummary *string
}

// EntryStore owns the in-memory entry list of one authenticated user and
// keeps it consistent with both local mutations and remote change
// notifications. The list is a cache, not a transactional view: a reload
// triggered by a notification may overwrite an optimistic local edit, and
// the last reload wins.
type EntryStore struct {
	userID string
	db     *sql.DB
	repos  repomanager.RepositoryManager
	source notify.Source
	logger logging.Logger

	mu        sync.Mutex
	entries   []*models.Entry
	loading   bool
	lastErr   string
	lastLimit int
	lastQuery string

	started     bool
	unsubscribe func()
	done        chan struct{}
}

func NewEntryStore(userID string, db *sql.DB, repos repomanager.RepositoryManager,
	source notify.Source, logger logging.Logger) *EntryStore {
	return &EntryStore{
		userID:    userID,
		db:        db,
		repos:     repos,
		source:    source,
		logger:    logger.With("module", "entry_store", "user_id", userID),
		lastLimit: defaultListLimit,
	}
}

// Start opens the store's single change subscription. Each notification for
// this user triggers a reload with the last-used limit and query, replacing
// any optimistic local state with server truth.
func (s *EntryStore) Start() error {
	if s.userID == "" {
		return common.ErrorUnauthenticated
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	ch, cancel := s.source.Subscribe(s.userID)
	s.unsubscribe = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		for range ch {
			s.reload()
		}
	}()
	return nil
}

// Close tears down the subscription. No reload fires after Close returns.
func (s *EntryStore) Close() {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()
	if !started || s.unsubscribe == nil {
		return
	}
	s.unsubscribe()
	<-s.done
}

func (s *EntryStore) reload() {
	s.mu.Lock()
	limit, query := s.lastLimit, s.lastQuery
	s.mu.Unlock()

	ctx := context.Background()
	if _, err := s.List(ctx, limit, query); err != nil {
		s.logger.Error(ctx, "reload after change notification failed", "error", err.Error())
	}
}

// List fetches up to limit entries, newest entry_date first, optionally
// filtered by a case-insensitive substring over title and content text. On
// failure the previous list stays visible and the error is recorded.
func (s *EntryStore) List(ctx context.Context, limit int, search string) ([]*models.Entry, error) {
	if s.userID == "" {
		return nil, common.ErrorUnauthenticated
	}

	s.mu.Lock()
	s.loading = true
	s.lastLimit = limit
	s.lastQuery = search
	s.mu.Unlock()

	result, err := s.repos.Entries(s.db).List(ctx, s.userID, limit, search)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastErr = err.Error()
		return nil, err
	}
	s.lastErr = ""
	s.entries = result
	return result, nil
}

// Create persists a new entry and prepends it to the in-memory list. The
// tag list is folded into the content document and mirrored into the
// normalized tags relations within the same transaction.
func (s *EntryStore) Create(ctx context.Context, form *EntryForm) (*models.Entry, error) {
	if s.userID == "" {
		return nil, common.ErrorUnauthenticated
	}

	entryDate := time.Now()
	if form.EntryDate != nil {
		entryDate = *form.EntryDate
	}

	entry := &models.Entry{
		ID:     uuid.NewString(),
		UserID: s.userID,
		Title:  form.Title,
		Content: models.EntryContent{
			Text: form.Text,
			Tags: form.Tags,
		},
		EntryDate:      entryDate,
		LocationText:   form.LocationText,
		WeatherSummary: form.WeatherSummary,
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Entries(tx).Create(ctx, entry); err != nil {
			return err
		}
		return s.repos.Tags(tx).SyncEntryTags(ctx, s.userID, entry.ID, form.Tags)
	})
	if err != nil {
		return nil, fmt.Errorf("error creating entry: %w", err)
	}

	s.mu.Lock()
	s.entries = append([]*models.Entry{entry}, s.entries...)
	s.mu.Unlock()

	return entry, nil
}

// Update patches the entry in place, refreshing updated_at. A target that
// is missing or owned by another user yields common.ErrorNotFound.
func (s *EntryStore) Update(ctx context.Context, id string, patch *entries.Patch) (*models.Entry, error) {
	if s.userID == "" {
		return nil, common.ErrorUnauthenticated
	}

	var updated *models.Entry
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var txErr error
		updated, txErr = s.repos.Entries(tx).Update(ctx, s.userID, id, patch)
		if txErr != nil {
			return txErr
		}
		if patch.Content != nil {
			return s.repos.Tags(tx).SyncEntryTags(ctx, s.userID, id, patch.Content.Tags)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for i, e := range s.entries {
		if e.ID == id {
			s.entries[i] = updated
			break
		}
	}
	s.mu.Unlock()

	return updated, nil
}

// Delete removes the entry scoped by id and owner. Returns false, without
// error, when there was nothing to delete.
func (s *EntryStore) Delete(ctx context.Context, id string) (bool, error) {
	if s.userID == "" {
		return false, common.ErrorUnauthenticated
	}

	ok, err := s.repos.Entries(s.db).Delete(ctx, s.userID, id)
	if err != nil || !ok {
		return ok, err
	}

	s.mu.Lock()
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	return true, nil
}

// EntriesByDate returns the owner's entries whose entry_date falls within
// the calendar day of the given moment, evaluated in its time zone.
func (s *EntryStore) EntriesByDate(ctx context.Context, day time.Time) ([]*models.Entry, error) {
	if s.userID == "" {
		return nil, common.ErrorUnauthenticated
	}

	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.Add(24*time.Hour - time.Microsecond)

	return s.repos.Entries(s.db).SelectByDateRange(ctx, s.userID, from, to)
}

// Tags returns the user's tag vocabulary ordered by name.
func (s *EntryStore) Tags(ctx context.Context) ([]*models.Tag, error) {
	if s.userID == "" {
		return nil, common.ErrorUnauthenticated
	}
	return s.repos.Tags(s.db).ListByUser(ctx, s.userID)
}

// Entries returns a snapshot copy of the in-memory list.
func (s *EntryStore) Entries() []*models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Loading reports whether a list fetch is in flight.
func (s *EntryStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the message of the last failed list fetch, empty after a
// successful one.
func (s *EntryStore) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
