package models

import "time"

// RefreshToken is a server-stored, single-use token rotated on refresh.
type RefreshToken struct {
	Token   string
	UserID  string
	Expires time.Time
}
