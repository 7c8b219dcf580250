package domain

import "time"

// Message is immutable once appended to a room log. Timestamp is assigned by
// the server on receipt.
type Message struct {
	User      string    `json:"user"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
