// Package shared holds the live chat wire format spoken by the server hub and
// the client channel.
package shared

import "time"

// Envelope is one live chat frame. Event selects which fields are meaningful:
//
//	join    room, user                 client → server
//	joined  room, user, history        server → joining client only
//	message room, user, text, dateTime client → server
//	chat    room, user, text, dateTime server → other room members
//	leave   room, user                 client → server
type Envelope struct {
	Event    string        `json:"event"`
	Room     string        `json:"room"`
	User     string        `json:"user,omitempty"`
	Text     string        `json:"text,omitempty"`
	DateTime time.Time     `json:"dateTime"`
	History  []HistoryLine `json:"history,omitempty"`
}

// HistoryLine is one persisted chat line delivered with "joined".
type HistoryLine struct {
	User     string    `json:"user"`
	Text     string    `json:"text"`
	DateTime time.Time `json:"dateTime"`
}
