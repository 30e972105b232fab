package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/common"
	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
	"github.com/dmitrijs2005/journalkeeper/internal/server/repositories/entries"
	"github.com/dmitrijs2005/journalkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
)

const defaultListLimit = 50

type entryRequest struct {
	Title          string     `json:"title"`
	Text           string     `json:"text"`
	Tags           []string   `json:"tags"`
	EntryDate      *time.Time `json:"entryDate"`
	LocationText   *string    `json:"locationText"`
	WeatherSummary *string    `json:"weatherSummary"`
}

// entryPatchRequest distinguishes absent fields (nil, left untouched) from
// supplied ones. Text and tags travel together: patching either replaces the
// whole content document.
type entryPatchRequest struct {
	Title          *string    `json:"title"`
	Text           *string    `json:"text"`
	Tags           *[]string  `json:"tags"`
	EntryDate      *time.Time `json:"entryDate"`
	LocationText   *string    `json:"locationText"`
	WeatherSummary *string    `json:"weatherSummary"`
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, fmt.Errorf("%w: limit must be a positive integer", common.ErrorValidation))
			return
		}
		limit = n
	}
	search := r.URL.Query().Get("search")

	result, err := s.sessions.Store(userID).List(r.Context(), limit, search)
	if err != nil {
		writeError(w, err)
		return
	}
	if result == nil {
		result = []*models.Entry{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", common.ErrorValidation))
		return
	}

	entry, err := s.sessions.Store(userID).Create(r.Context(), &services.EntryForm{
		Title:          req.Title,
		Text:           req.Text,
		Tags:           req.Tags,
		EntryDate:      req.EntryDate,
		LocationText:   req.LocationText,
		WeatherSummary: req.WeatherSummary,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req entryPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", common.ErrorValidation))
		return
	}

	patch := &entries.Patch{
		Title:          req.Title,
		EntryDate:      req.EntryDate,
		LocationText:   req.LocationText,
		WeatherSummary: req.WeatherSummary,
	}
	if req.Text != nil || req.Tags != nil {
		content := &models.EntryContent{}
		if req.Text != nil {
			content.Text = *req.Text
		}
		if req.Tags != nil {
			content.Tags = *req.Tags
		}
		patch.Content = content
	}

	entry, err := s.sessions.Store(userID).Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	ok, err := s.sessions.Store(userID).Delete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, common.ErrorNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	tags, err := s.sessions.Store(userID).Tags(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if tags == nil {
		tags = []*models.Tag{}
	}
	writeJSON(w, http.StatusOK, tags)
}

// handleEntriesByDay returns the entries of one calendar day. The date
// parameter is either YYYY-MM-DD (evaluated in UTC) or RFC 3339, whose zone
// then defines the day's boundaries.
func (s *Server) handleEntriesByDay(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeError(w, fmt.Errorf("%w: date parameter is required", common.ErrorValidation))
		return
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		day, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, fmt.Errorf("%w: date must be YYYY-MM-DD or RFC 3339", common.ErrorValidation))
			return
		}
	}

	result, err := s.sessions.Store(userID).EntriesByDate(r.Context(), day)
	if err != nil {
		writeError(w, err)
		return
	}
	if result == nil {
		result = []*models.Entry{}
	}
	writeJSON(w, http.StatusOK, result)
}
