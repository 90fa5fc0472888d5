package models

import (
	"time"
)

type Event struct {
	ID        int64      `json:"id" db:"id"`
	Title     string     `json:"title" db:"title"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// EventLocation is one venue+date+time occurrence of an event.
type EventLocation struct {
	ID         int64      `json:"id" db:"id"`
	EventID    int64      `json:"event_id" db:"event_id"`
	LocationID int64      `json:"location_id" db:"location_id"`
	EventDate  time.Time  `json:"event_date" db:"event_date"`
	StartTime  *string    `json:"start_time,omitempty" db:"start_time"`
	EndTime    *string    `json:"end_time,omitempty" db:"end_time"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// EventEntryPoint is a gate assigned to an occurrence. Scans reference this
// row's id, not the entry point itself.
type EventEntryPoint struct {
	ID              int64  `json:"id" db:"id"`
	EventLocationID int64  `json:"event_location_id" db:"event_location_id"`
	EntryPointID    int64  `json:"entry_point_id" db:"entry_point_id"`
	Name            string `json:"name" db:"name"`
}

type CreateEventLocationRequest struct {
	LocationID    int64   `json:"location_id" binding:"required"`
	EventDate     string  `json:"event_date" binding:"required"` // YYYY-MM-DD
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	EntryPointIDs []int64 `json:"entry_point_ids"`
}

type CreateEventRequest struct {
	Title     string                       `json:"title" binding:"required"`
	Locations []CreateEventLocationRequest `json:"locations" binding:"required"`
}
