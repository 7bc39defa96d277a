package models

import "time"

// ChatMessage is one persisted line of a sighting's chat room.
type ChatMessage struct {
	ID        int64     `db:"id" json:"-"`
	Room      string    `db:"sighting_id" json:"room"`
	Username  string    `db:"username" json:"username"`
	Text      string    `db:"text" json:"text"`
	DateTime  time.Time `db:"date_time" json:"dateTime"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}
