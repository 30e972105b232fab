package models

import "time"

// EntryContent is the semi-structured body of a journal entry, stored as a
// single jsonb column. Tags are caller-supplied and expected to arrive
// deduplicated and lowercased; the store does not normalize them.
type EntryContent struct {
	Text string   `json:"text"`
	Tags []string `json:"tags"`
}

// Entry is one journal record owned by a single user. Every query and
// mutation touching it is scoped by UserID.
type Entry struct {
	ID             string       `json:"id"`
	UserID         string       `json:"userId"`
	Title          string       `json:"title"`
	Content        EntryContent `json:"content"`
	EntryDate      time.Time    `json:"entryDate"`
	LocationText   *string      `json:"locationText"`
	WeatherSummary *string      `json:"weatherSummary"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}
