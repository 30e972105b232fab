package models

// Tag is one normalized tag row owned by a user. Tags are linked to entries
// through the entry_tags join table and mirror the tag list embedded in the
// entry content document.
type Tag struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
}
