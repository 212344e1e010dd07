package model

import "time"

// Exchange is one completed user/bot pair kept in session history.
type Exchange struct {
	Utterance string
	Reply     string
	At        time.Time
}

// TurnRecord describes what a single turn retrieved and produced.
// It travels with the reply and is never stored.
type TurnRecord struct {
	Inbound         string
	Intent          Intent
	PassageRefs     []string
	ProductRefs     []int64
	Outbound        string
	Recommendations []Recommendation
	Fallback        bool
	Timestamp       time.Time
}
