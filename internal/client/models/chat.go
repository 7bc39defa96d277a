package models

import "time"

// PendingChatMessage is a chat line kept locally for a room. It is part of the
// room transcript whether or not it reached the live channel; Synced tells the
// sync run whether it still has to be replayed.
type PendingChatMessage struct {
	ID       int64     `json:"-"`
	Room     string    `json:"room"`
	Username string    `json:"username"`
	Text     string    `json:"text"`
	DateTime time.Time `json:"dateTime"`
	Synced   bool      `json:"synced"`
}

// ChatMessage is one line of a room's authoritative history.
type ChatMessage struct {
	Room     string    `json:"room"`
	Username string    `json:"username"`
	Text     string    `json:"text"`
	DateTime time.Time `json:"dateTime"`
}
