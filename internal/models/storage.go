package models

import "time"

// Record subjects and keys used by both stores.
const (
	SubjectAppData = "appdata"
	KeyCurrent     = "current"
	LocalUserID    = "local"
)

// UserRecord is the stored envelope around a JSON-encoded document. The
// local store and the remote store share it so a record can move between
// them unchanged.
type UserRecord struct {
	UserID   string    `json:"user_id"`
	Subject  string    `json:"subject"`
	Key      string    `json:"key"`
	Value    string    `json:"value"`
	Version  int       `json:"version"`
	DateTime time.Time `json:"datetime"`
}
