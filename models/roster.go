package models

import (
	"time"
)

// Roster is an uploaded batch of known identifiers. A scan config may pin
// one roster to restrict which identifiers a gate admits.
type Roster struct {
	ID        int64      `json:"id" db:"id"`
	Code      string     `json:"code" db:"code"`
	Name      string     `json:"name" db:"name"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

type RosterMember struct {
	ID         int64      `json:"id" db:"id"`
	RosterID   int64      `json:"roster_id" db:"roster_id"`
	Identifier string     `json:"identifier" db:"identifier"`
	Name       *string    `json:"name,omitempty" db:"name"`
	DOB        *time.Time `json:"dob,omitempty" db:"dob"`
	Group      *string    `json:"group,omitempty" db:"group_name"`
	PhotoURL   *string    `json:"photo_url,omitempty" db:"photo_url"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

type CreateRosterRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

type RosterMemberRow struct {
	Identifier string  `json:"identifier" binding:"required"`
	Name       *string `json:"name"`
	DOB        *string `json:"dob"` // YYYY-MM-DD
	Group      *string `json:"group"`
	PhotoURL   *string `json:"photo_url"`
}

type AddRosterMembersRequest struct {
	Members []RosterMemberRow `json:"members" binding:"required"`
}
