package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/journalkeeper/internal/common"
	"github.com/dmitrijs2005/journalkeeper/internal/dbx"
	"github.com/dmitrijs2005/journalkeeper/internal/logging"
	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
	"github.com/dmitrijs2005/journalkeeper/internal/server/notify"
	entriesrepo "github.com/dmitrijs2005/journalkeeper/internal/server/repositories/entries"
	mediarepo "github.com/dmitrijs2005/journalkeeper/internal/server/repositories/media"
	"github.com/dmitrijs2005/journalkeeper/internal/server/repositories/repomanager"
	tagsrepo "github.com/dmitrijs2005/journalkeeper/internal/server/repositories/tags"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// -------- test fakes --------

type fakeEntriesRepo struct {
	entriesrepo.Repository

	mu        sync.Mutex
	listOut   []*models.Entry
	listErr   error
	listCalls int

	createErr error
	created   []*models.Entry

	updateOut *models.Entry
	updateErr error

	deleteOK  bool
	deleteErr error

	rangeOut  []*models.Entry
	rangeErr  error
	rangeFrom time.Time
	rangeTo   time.Time
}

func (f *fakeEntriesRepo) List(ctx context.Context, userID string, limit int, search string) ([]*models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listOut, nil
}

func (f *fakeEntriesRepo) Create(ctx context.Context, e *models.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, e)
	return nil
}

func (f *fakeEntriesRepo) Update(ctx context.Context, userID, id string, patch *entriesrepo.Patch) (*models.Entry, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.updateOut, nil
}

func (f *fakeEntriesRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	return f.deleteOK, f.deleteErr
}

func (f *fakeEntriesRepo) SelectByDateRange(ctx context.Context, userID string, from, to time.Time) ([]*models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rangeFrom, f.rangeTo = from, to
	return f.rangeOut, f.rangeErr
}

func (f *fakeEntriesRepo) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type fakeTagsRepo struct {
	tagsrepo.Repository

	syncErr error
	synced  map[string][]string
}

func (f *fakeTagsRepo) SyncEntryTags(ctx context.Context, userID, entryID string, names []string) error {
	if f.syncErr != nil {
		return f.syncErr
	}
	if f.synced == nil {
		f.synced = make(map[string][]string)
	}
	f.synced[entryID] = names
	return nil
}

type fakeMediaRepo struct {
	mediarepo.Repository

	insertErr error
	inserted  []*models.MediaRecord

	getOut *models.MediaRecord
	getErr error

	deleteOK  bool
	deleteErr error
}

func (f *fakeMediaRepo) Insert(ctx context.Context, record *models.MediaRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, record)
	return nil
}

func (f *fakeMediaRepo) GetByID(ctx context.Context, userID, id string) (*models.MediaRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

func (f *fakeMediaRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	return f.deleteOK, f.deleteErr
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	e *fakeEntriesRepo
	t *fakeTagsRepo
	m *fakeMediaRepo
	u *fakeUsersRepo
	r *fakeRefreshRepo
}

func (m *fakeRepoManager) Entries(db dbx.DBTX) entriesrepo.Repository { return m.e }
func (m *fakeRepoManager) Tags(db dbx.DBTX) tagsrepo.Repository       { return m.t }
func (m *fakeRepoManager) Media(db dbx.DBTX) mediarepo.Repository     { return m.m }

// -------- helpers --------

func newTestLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func newEntryStore(t *testing.T, db *sql.DB, rm *fakeRepoManager, source notify.Source) *EntryStore {
	t.Helper()
	if source == nil {
		source = notify.NewBroker()
	}
	return NewEntryStore("u1", db, rm, source, newTestLogger())
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

// -------- tests --------

func TestEntryStore_Unauthenticated(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{e: &fakeEntriesRepo{}, t: &fakeTagsRepo{}}
	s := NewEntryStore("", db, rm, notify.NewBroker(), newTestLogger())
	ctx := context.Background()

	if _, err := s.List(ctx, 10, ""); !errors.Is(err, common.ErrorUnauthenticated) {
		t.Fatalf("List: want ErrorUnauthenticated, got %v", err)
	}
	if _, err := s.Create(ctx, &EntryForm{Title: "x"}); !errors.Is(err, common.ErrorUnauthenticated) {
		t.Fatalf("Create: want ErrorUnauthenticated, got %v", err)
	}
	if _, err := s.Update(ctx, "id", &entriesrepo.Patch{}); !errors.Is(err, common.ErrorUnauthenticated) {
		t.Fatalf("Update: want ErrorUnauthenticated, got %v", err)
	}
	if _, err := s.Delete(ctx, "id"); !errors.Is(err, common.ErrorUnauthenticated) {
		t.Fatalf("Delete: want ErrorUnauthenticated, got %v", err)
	}
	if err := s.Start(); !errors.Is(err, common.ErrorUnauthenticated) {
		t.Fatalf("Start: want ErrorUnauthenticated, got %v", err)
	}
	if rm.e.calls() != 0 {
		t.Fatalf("repository must not be touched, got %d calls", rm.e.calls())
	}
}

func TestEntryStore_CreateRoundTrip(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := &fakeRepoManager{e: &fakeEntriesRepo{}, t: &fakeTagsRepo{}}
	s := newEntryStore(t, db, rm, nil)

	loc := "Riga"
	when := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)
	entry, err := s.Create(context.Background(), &EntryForm{
		Title:        "Morning",
		Text:         "walked along the river",
		Tags:         []string{"walk", "river"},
		EntryDate:    &when,
		LocationText: &loc,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if entry.ID == "" || entry.UserID != "u1" {
		t.Fatalf("unexpected entry identity: %+v", entry)
	}
	if entry.Content.Text != "walked along the river" || len(entry.Content.Tags) != 2 {
		t.Fatalf("content not carried through: %+v", entry.Content)
	}
	if !entry.EntryDate.Equal(when) {
		t.Fatalf("entry date: want %v, got %v", when, entry.EntryDate)
	}

	if got := rm.t.synced[entry.ID]; len(got) != 2 || got[0] != "walk" {
		t.Fatalf("tags not synced in the same transaction: %v", got)
	}

	list := s.Entries()
	if len(list) != 1 || list[0].ID != entry.ID {
		t.Fatalf("created entry not visible in list: %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestEntryStore_CreateDefaultsEntryDate(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := &fakeRepoManager{e: &fakeEntriesRepo{}, t: &fakeTagsRepo{}}
	s := newEntryStore(t, db, rm, nil)

	before := time.Now()
	entry, err := s.Create(context.Background(), &EntryForm{Title: "now"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if entry.EntryDate.Before(before) || entry.EntryDate.After(time.Now()) {
		t.Fatalf("entry date not defaulted to now: %v", entry.EntryDate)
	}
}

func TestEntryStore_CreateRollsBackOnTagError(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	rm := &fakeRepoManager{e: &fakeEntriesRepo{}, t: &fakeTagsRepo{syncErr: errBoom{}}}
	s := newEntryStore(t, db, rm, nil)

	if _, err := s.Create(context.Background(), &EntryForm{Title: "x", Tags: []string{"a"}}); err == nil {
		t.Fatal("expected error")
	}
	if len(s.Entries()) != 0 {
		t.Fatal("failed create must not appear in the list")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestEntryStore_ListErrorKeepsPreviousEntries(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	e := &fakeEntriesRepo{listOut: []*models.Entry{{ID: "e1"}, {ID: "e2"}}}
	rm := &fakeRepoManager{e: e, t: &fakeTagsRepo{}}
	s := newEntryStore(t, db, rm, nil)
	ctx := context.Background()

	if _, err := s.List(ctx, 10, ""); err != nil {
		t.Fatalf("List error: %v", err)
	}
	if s.Err() != "" {
		t.Fatalf("unexpected error state: %q", s.Err())
	}

	e.mu.Lock()
	e.listErr = errBoom{}
	e.mu.Unlock()

	if _, err := s.List(ctx, 10, ""); err == nil {
		t.Fatal("expected list error")
	}
	if got := s.Entries(); len(got) != 2 {
		t.Fatalf("previous list must stay visible, got %d entries", len(got))
	}
	if s.Err() == "" {
		t.Fatal("error state must be recorded")
	}

	e.mu.Lock()
	e.listErr = nil
	e.mu.Unlock()

	if _, err := s.List(ctx, 10, ""); err != nil {
		t.Fatalf("List error: %v", err)
	}
	if s.Err() != "" {
		t.Fatalf("error state must clear after success: %q", s.Err())
	}
}

func TestEntryStore_UpdateNotFoundPassesThrough(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	rm := &fakeRepoManager{e: &fakeEntriesRepo{updateErr: common.ErrorNotFound}, t: &fakeTagsRepo{}}
	s := newEntryStore(t, db, rm, nil)

	if _, err := s.Update(context.Background(), "ghost", &entriesrepo.Patch{}); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestEntryStore_UpdateReplacesInList(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	old := &models.Entry{ID: "e1", Title: "old"}
	updated := &models.Entry{ID: "e1", Title: "new", Content: models.EntryContent{Tags: []string{"t"}}}

	e := &fakeEntriesRepo{listOut: []*models.Entry{old}, updateOut: updated}
	tagsFake := &fakeTagsRepo{}
	rm := &fakeRepoManager{e: e, t: tagsFake}
	s := newEntryStore(t, db, rm, nil)
	ctx := context.Background()

	if _, err := s.List(ctx, 10, ""); err != nil {
		t.Fatalf("List error: %v", err)
	}

	got, err := s.Update(ctx, "e1", &entriesrepo.Patch{Content: &updated.Content})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if got.Title != "new" {
		t.Fatalf("unexpected update result: %+v", got)
	}
	if list := s.Entries(); list[0].Title != "new" {
		t.Fatalf("list not updated in place: %+v", list[0])
	}
	if got := tagsFake.synced["e1"]; len(got) != 1 || got[0] != "t" {
		t.Fatalf("content patch must resync tags: %v", got)
	}
}

func TestEntryStore_DeleteIdempotent(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	e := &fakeEntriesRepo{listOut: []*models.Entry{{ID: "e1"}}, deleteOK: true}
	rm := &fakeRepoManager{e: e, t: &fakeTagsRepo{}}
	s := newEntryStore(t, db, rm, nil)
	ctx := context.Background()

	if _, err := s.List(ctx, 10, ""); err != nil {
		t.Fatalf("List error: %v", err)
	}

	ok, err := s.Delete(ctx, "e1")
	if err != nil || !ok {
		t.Fatalf("first delete: want (true, nil), got (%v, %v)", ok, err)
	}
	if len(s.Entries()) != 0 {
		t.Fatal("deleted entry must leave the list")
	}

	e.deleteOK = false
	ok, err = s.Delete(ctx, "e1")
	if err != nil || ok {
		t.Fatalf("second delete: want (false, nil), got (%v, %v)", ok, err)
	}
}

func TestEntryStore_EntriesByDateBounds(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	e := &fakeEntriesRepo{}
	rm := &fakeRepoManager{e: e, t: &fakeTagsRepo{}}
	s := newEntryStore(t, db, rm, nil)

	zone := time.FixedZone("UTC+3", 3*60*60)
	day := time.Date(2025, 7, 14, 18, 45, 12, 0, zone)

	if _, err := s.EntriesByDate(context.Background(), day); err != nil {
		t.Fatalf("EntriesByDate error: %v", err)
	}

	wantFrom := time.Date(2025, 7, 14, 0, 0, 0, 0, zone)
	wantTo := wantFrom.Add(24*time.Hour - time.Microsecond)
	if !e.rangeFrom.Equal(wantFrom) || !e.rangeTo.Equal(wantTo) {
		t.Fatalf("range: want [%v, %v], got [%v, %v]", wantFrom, wantTo, e.rangeFrom, e.rangeTo)
	}
}

func TestEntryStore_NotificationTriggersReload(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	e := &fakeEntriesRepo{listOut: []*models.Entry{{ID: "server-truth"}}}
	rm := &fakeRepoManager{e: e, t: &fakeTagsRepo{}}
	broker := notify.NewBroker()
	defer broker.Close()

	s := newEntryStore(t, db, rm, broker)
	if err := s.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer s.Close()

	broker.Publish(notify.Change{Op: "INSERT", UserID: "u1", EntryID: "x"})

	waitFor(t, time.Second, func() bool { return e.calls() >= 1 })
	waitFor(t, time.Second, func() bool {
		list := s.Entries()
		return len(list) == 1 && list[0].ID == "server-truth"
	})
}

func TestEntryStore_NoReloadForOtherUsers(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	e := &fakeEntriesRepo{}
	rm := &fakeRepoManager{e: e, t: &fakeTagsRepo{}}
	broker := notify.NewBroker()
	defer broker.Close()

	s := newEntryStore(t, db, rm, broker)
	if err := s.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer s.Close()

	broker.Publish(notify.Change{Op: "INSERT", UserID: "someone-else", EntryID: "x"})

	time.Sleep(50 * time.Millisecond)
	if e.calls() != 0 {
		t.Fatalf("foreign change must not trigger a reload, got %d calls", e.calls())
	}
}

func TestEntryStore_CloseStopsReloads(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	e := &fakeEntriesRepo{}
	rm := &fakeRepoManager{e: e, t: &fakeTagsRepo{}}
	broker := notify.NewBroker()
	defer broker.Close()

	s := newEntryStore(t, db, rm, broker)
	if err := s.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	s.Close()
	s.Close() // idempotent

	broker.Publish(notify.Change{Op: "UPDATE", UserID: "u1", EntryID: "x"})

	time.Sleep(50 * time.Millisecond)
	if e.calls() != 0 {
		t.Fatalf("no reload may fire after Close, got %d calls", e.calls())
	}
}
