package services

import (
	"database/sql"
	"sync"

	"github.com/dmitrijs2005/journalkeeper/internal/logging"
	"github.com/dmitrijs2005/journalkeeper/internal/server/notify"
	"github.com/dmitrijs2005/journalkeeper/internal/server/objstore"
	"github.com/dmitrijs2005/journalkeeper/internal/server/repositories/repomanager"
)

// session bundles the per-user stateful services.
type session struct {
	store    *EntryStore
	uploader *MediaUploader
}

// SessionRegistry owns at most one EntryStore/MediaUploader pair per
// authenticated user. The store's change subscription is acquired on first
// use and released on Release or Close, never leaked as a process-wide
// singleton.
type SessionRegistry struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	source notify.Source
	blobs  objstore.Store
	logger logging.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

func NewSessionRegistry(db *sql.DB, repos repomanager.RepositoryManager,
	source notify.Source, blobs objstore.Store, logger logging.Logger) *SessionRegistry {
	return &SessionRegistry{
		db:       db,
		repos:    repos,
		source:   source,
		blobs:    blobs,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

func (r *SessionRegistry) get(userID string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[userID]; ok {
		return s
	}
	s := &session{
		store:    NewEntryStore(userID, r.db, r.repos, r.source, r.logger),
		uploader: NewMediaUploader(userID, r.db, r.repos, r.blobs, r.logger),
	}
	_ = s.store.Start()
	r.sessions[userID] = s
	return s
}

// Store returns the user's entry store, creating (and subscribing) it on
// first use.
func (r *SessionRegistry) Store(userID string) *EntryStore {
	return r.get(userID).store
}

// Uploader returns the user's media uploader, creating it on first use.
func (r *SessionRegistry) Uploader(userID string) *MediaUploader {
	return r.get(userID).uploader
}

// Release tears down the user's session and its change subscription.
func (r *SessionRegistry) Release(userID string) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()
	if ok {
		s.store.Close()
	}
}

// Close releases every session.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.store.Close()
	}
}
