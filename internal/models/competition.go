package models

import "time"

// Competition is the single global competition record, advanced by the
// elimination cycle.
type Competition struct {
	Round             int       `json:"round"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	EliminatedHistory []string  `json:"eliminated_history"` // "key@generation" per elimination
}
