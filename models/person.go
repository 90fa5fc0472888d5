package models

import (
	"time"
)

// PersonProfile is the display profile resolved from roster data for a
// scanned identifier. A missing person yields the zero profile with
// Found=false; that is still renderable.
type PersonProfile struct {
	Found      bool    `json:"found"`
	Identifier string  `json:"identifier"`
	Name       *string `json:"name,omitempty"`
	DOB        *string `json:"dob,omitempty"` // YYYY-MM-DD
	Age        *int    `json:"age,omitempty"`
	Group      *string `json:"group,omitempty"`
	PhotoURL   *string `json:"photo_url,omitempty"`
}

// Age returns whole years between dob and today, subtracting one when
// today's month/day falls before the birthday.
func Age(dob, today time.Time) int {
	years := today.Year() - dob.Year()
	if today.Month() < dob.Month() ||
		(today.Month() == dob.Month() && today.Day() < dob.Day()) {
		years--
	}
	return years
}
