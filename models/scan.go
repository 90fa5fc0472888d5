package models

import (
	"encoding/json"
	"regexp"
	"time"
)

var identifierRe = regexp.MustCompile(`^[0-9]{8}$`)

// ValidIdentifier reports whether s is a complete scan identifier:
// exactly 8 digits, nothing else.
func ValidIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// Scan is one recorded submission attempt, accepted or rejected. Rows are
// written only by the recording transaction and never updated from the
// scan flow.
type Scan struct {
	ID                int64           `json:"id" db:"id"`
	Identifier        string          `json:"identifier" db:"identifier"`
	EventLocationID   int64           `json:"event_location_id" db:"event_location_id"`
	EventEntryPointID int64           `json:"event_entry_point_id" db:"event_entry_point_id"`
	RosterID          *int64          `json:"roster_id,omitempty" db:"roster_id"`
	OperatorID        *int64          `json:"operator_id,omitempty" db:"operator_id"`
	DeviceMetadata    json.RawMessage `json:"device_metadata,omitempty" db:"device_metadata"`
	ScannedAt         time.Time       `json:"scanned_at" db:"scanned_at"`
	Valid             bool            `json:"valid" db:"valid"`
	Duplicate         bool            `json:"duplicate" db:"duplicate"`
	Message           *string         `json:"message,omitempty" db:"message"`
}

type RecordScanRequest struct {
	Identifier        string          `json:"identifier" binding:"required"`
	EventLocationID   int64           `json:"event_location_id" binding:"required"`
	EventEntryPointID int64           `json:"event_entry_point_id" binding:"required"`
	RosterID          *int64          `json:"roster_id"`
	ScannedAt         *time.Time      `json:"scanned_at"`
	DeviceMetadata    json.RawMessage `json:"device_metadata"`
}

// ScanResult is the discriminated outcome of one recording transaction.
// It is the single source of truth the client branches on.
type ScanResult struct {
	RecordID  int64     `json:"record_id"`
	Allowed   bool      `json:"allowed"`
	Duplicate bool      `json:"duplicate"`
	Message   string    `json:"message"`
	ScannedAt time.Time `json:"scanned_at"`
}

// LastSeenResult carries the most recent prior accepted scan time for an
// identifier at a location, if one exists.
type LastSeenResult struct {
	Found     bool       `json:"found"`
	ScannedAt *time.Time `json:"scanned_at,omitempty"`
}
