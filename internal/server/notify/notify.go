// Package notify delivers entry change events to per-user subscribers.
// Changes originate from a PostgreSQL trigger (pg_notify on the entries
// table) and are fanned out in-process by a Broker.
package notify

// Change describes one insert/update/delete on the entries relation.
// The payload matches the json built by the entries_notify trigger.
type Change struct {
	Op      string `json:"op"`
	UserID  string `json:"user_id"`
	EntryID string `json:"entry_id"`
}

// Source hands out per-user change subscriptions. Subscribe returns a
// receive channel and a cancel function; the channel is closed by cancel or
// when the source shuts down, and no sends happen after either.
type Source interface {
	Subscribe(userID string) (<-chan Change, func())
}
