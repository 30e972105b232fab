package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/common"
	"github.com/dmitrijs2005/journalkeeper/internal/logging"
	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
	"github.com/dmitrijs2005/journalkeeper/internal/server/objstore"
	"github.com/dmitrijs2005/journalkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Per-class size ceilings.
const (
	maxImageSize    = 10 << 20
	maxAudioSize    = 50 << 20
	maxVideoSize    = 100 << 20
	maxDocumentSize = 25 << 20
)

// progressTTL is how long terminal progress entries stay observable after a
// batch finishes before they are cleared. Variable as a test seam.
var progressTTL = 3 * time.Second

// documentTypes is the allowlist for non-media attachments.
var documentTypes = map[string]struct{}{
	"application/pdf":    {},
	"text/plain":         {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
}

// UploadFile is one file submitted to UploadFiles. ContentType is the
// declared type; validation trusts it and performs no sniffing.
type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Data        io.Reader
}

// UploadProgress is the per-file progress entry, keyed by file name and
// ordered by first appearance in the batch.
type UploadProgress struct {
	FileName string `json:"fileName"`
	Percent  int    `json:"progressPercent"`
	Done     bool   `json:"isComplete"`
	Error    string `json:"error,omitempty"`
}

// MediaUploader validates, uploads, and records attachments for one
// authenticated user. Files are processed strictly sequentially so that the
// storage/database pair touched per file is fully resolved (both written or
// both absent) before the next file starts.
type MediaUploader struct {
	userID string
	db     *sql.DB
	repos  repomanager.RepositoryManager
	store  objstore.Store
	logger logging.Logger

	mu         sync.Mutex
	uploading  bool
	order      []string
	progress   map[string]*UploadProgress
	clearTimer *time.Timer
}

func NewMediaUploader(userID string, db *sql.DB, repos repomanager.RepositoryManager,
	store objstore.Store, logger logging.Logger) *MediaUploader {
	return &MediaUploader{
		userID:   userID,
		db:       db,
		repos:    repos,
		store:    store,
		logger:   logger.With("module", "media_uploader", "user_id", userID),
		progress: make(map[string]*UploadProgress),
	}
}

// ValidateFile checks the declared content type against the supported-type
// table and the size against that type's ceiling. Pure and synchronous; it
// performs no I/O.
func (u *MediaUploader) ValidateFile(name, contentType string, size int64) error {
	class, limit, ok := classifyContentType(contentType)
	if !ok {
		return fmt.Errorf("%w: unsupported file type %q", common.ErrorValidation, contentType)
	}
	if size > limit {
		return fmt.Errorf("%w: %s exceeds the %d MB limit for %s files",
			common.ErrorValidation, name, limit>>20, class)
	}
	return nil
}

func classifyContentType(contentType string) (class string, limit int64, ok bool) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image", maxImageSize, true
	case strings.HasPrefix(contentType, "audio/"):
		return "audio", maxAudioSize, true
	case strings.HasPrefix(contentType, "video/"):
		return "video", maxVideoSize, true
	default:
		if _, found := documentTypes[contentType]; found {
			return "document", maxDocumentSize, true
		}
		return "", 0, false
	}
}

// storagePath builds a collision-resistant object key:
// {userID}/{unixMilli}-{randomHex}{ext}.
func (u *MediaUploader) storagePath(fileName string) (string, error) {
	token, err := common.MakeRandHexString(8)
	if err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	return fmt.Sprintf("%s/%d-%s%s", u.userID, time.Now().UnixMilli(), token, ext), nil
}

// UploadFiles processes the batch one file at a time: validate, write the
// blob, insert the record. A database failure after a successful blob write
// is compensated by a best-effort blob delete, so no orphaned record or
// orphaned blob survives a partial failure. Per-file failures never abort
// sibling files; callers must inspect Progress for per-file outcomes. The
// returned slice holds only fully completed records.
func (u *MediaUploader) UploadFiles(ctx context.Context, files []UploadFile, entryID *string) ([]*models.MediaRecord, error) {
	if u.userID == "" {
		return nil, common.ErrorUnauthenticated
	}

	u.beginBatch(files)
	defer u.endBatch()

	var result []*models.MediaRecord
	for i := range files {
		f := &files[i]

		if err := u.ValidateFile(f.Name, f.ContentType, f.Size); err != nil {
			u.failProgress(f.Name, err.Error())
			continue
		}

		key, err := u.storagePath(f.Name)
		if err != nil {
			u.failProgress(f.Name, err.Error())
			continue
		}

		// The blob API exposes no byte-level progress; 50% marks "upload
		// started" for the observing UI.
		u.setPercent(f.Name, 50)

		if err := u.store.Put(ctx, key, f.ContentType, f.Data); err != nil {
			u.logger.Error(ctx, "blob write failed", "file", f.Name, "error", err.Error())
			u.failProgress(f.Name, err.Error())
			continue
		}

		record := &models.MediaRecord{
			ID:          uuid.NewString(),
			UserID:      u.userID,
			EntryID:     entryID,
			StoragePath: key,
			FileName:    f.Name,
			FileSize:    f.Size,
			MimeType:    f.ContentType,
		}
		if err := u.repos.Media(u.db).Insert(ctx, record); err != nil {
			u.logger.Error(ctx, "media insert failed, compensating blob delete", "path", key, "error", err.Error())
			if rerr := u.store.Remove(ctx, []string{key}); rerr != nil {
				u.logger.Error(ctx, "compensating blob delete failed", "path", key, "error", rerr.Error())
			}
			u.failProgress(f.Name, err.Error())
			continue
		}

		u.completeProgress(f.Name)
		result = append(result, record)
	}
	return result, nil
}

// DeleteMedia removes the attachment scoped by id and owner: blob first
// (failure logged, non-fatal, the database stays the source of truth), then
// the record. Returns true only if the database row was removed.
func (u *MediaUploader) DeleteMedia(ctx context.Context, id string) (bool, error) {
	if u.userID == "" {
		return false, common.ErrorUnauthenticated
	}

	record, err := u.repos.Media(u.db).GetByID(ctx, u.userID, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := u.store.Remove(ctx, []string{record.StoragePath}); err != nil {
		u.logger.Warn(ctx, "blob delete failed, removing record anyway", "path", record.StoragePath, "error", err.Error())
	}

	return u.repos.Media(u.db).Delete(ctx, u.userID, id)
}

// MediaByEntry lists one entry's attachments, oldest first.
func (u *MediaUploader) MediaByEntry(ctx context.Context, entryID string) ([]*models.MediaRecord, error) {
	if u.userID == "" {
		return nil, common.ErrorUnauthenticated
	}
	return u.repos.Media(u.db).ListByEntry(ctx, u.userID, entryID)
}

// MediaURL derives the public retrieval URL for a storage path. Pure.
func (u *MediaUploader) MediaURL(storagePath string) string {
	return u.store.PublicURL(storagePath)
}

// Uploading reports whether a batch is in flight.
func (u *MediaUploader) Uploading() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.uploading
}

// Progress returns the per-file progress entries ordered by first
// appearance in the current (or just-finished) batch.
func (u *MediaUploader) Progress() []UploadProgress {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]UploadProgress, 0, len(u.order))
	for _, name := range u.order {
		if p, ok := u.progress[name]; ok {
			out = append(out, *p)
		}
	}
	return out
}

func (u *MediaUploader) beginBatch(files []UploadFile) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.clearTimer != nil {
		u.clearTimer.Stop()
		u.clearTimer = nil
	}
	u.uploading = true
	u.order = u.order[:0]
	u.progress = make(map[string]*UploadProgress, len(files))
	for i := range files {
		name := files[i].Name
		if _, seen := u.progress[name]; seen {
			continue
		}
		u.order = append(u.order, name)
		u.progress[name] = &UploadProgress{FileName: name}
	}
}

// endBatch leaves the terminal progress entries observable for progressTTL,
// then clears them.
func (u *MediaUploader) endBatch() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploading = false
	u.clearTimer = time.AfterFunc(progressTTL, func() {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.order = nil
		u.progress = make(map[string]*UploadProgress)
		u.clearTimer = nil
	})
}

func (u *MediaUploader) setPercent(name string, percent int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if p, ok := u.progress[name]; ok {
		p.Percent = percent
	}
}

func (u *MediaUploader) failProgress(name, message string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if p, ok := u.progress[name]; ok {
		p.Done = true
		p.Error = message
	}
}

func (u *MediaUploader) completeProgress(name string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if p, ok := u.progress[name]; ok {
		p.Percent = 100
		p.Done = true
	}
}
