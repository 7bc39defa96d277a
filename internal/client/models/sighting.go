// Package models defines the client-side records: what the device queues
// while offline and what it reads back from the remote service.
package models

import "time"

// PendingSighting is a sighting captured while offline. It lives in the
// local store until the remote service acknowledges the batch it was sent in.
//
// Latitude and Longitude are kept exactly as entered; the remote service
// validates them when the batch arrives.
type PendingSighting struct {
	ID             int64     `json:"-"`
	ClientRef      string    `json:"clientRef"`
	UploadedBy     string    `json:"uploadedBy"`
	Identification string    `json:"identification"`
	Description    string    `json:"description"`
	DateTime       time.Time `json:"dateTime"`
	Latitude       string    `json:"latitude"`
	Longitude      string    `json:"longitude"`
	Image          string    `json:"img"`
	Signature      string    `json:"signature"`
}

// Sighting is the canonical copy held by the remote service.
type Sighting struct {
	ID             string    `json:"id"`
	UploadedBy     string    `json:"uploadedBy"`
	Identification string    `json:"identification"`
	Description    string    `json:"description"`
	DateTime       time.Time `json:"dateTime"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Image          string    `json:"img"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SpeciesInfo is the best-effort metadata for an identification.
type SpeciesInfo struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Abstract string `json:"abstract"`
	Genus    string `json:"genus"`
	Species  string `json:"species"`
}

// SightingDetails is a sighting plus optional enrichment.
type SightingDetails struct {
	Sighting
	Species  *SpeciesInfo `json:"species,omitempty"`
	MapImage string       `json:"mapImage,omitempty"`
}

// SyncItem reports what the remote service did with one queued sighting.
type SyncItem struct {
	ClientRef string `json:"clientRef"`
	Status    string `json:"status"`
	ID        string `json:"id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Sync item statuses.
const (
	SyncCreated   = "created"
	SyncDuplicate = "duplicate"
	SyncRejected  = "rejected"
)

// SyncResult is the response to a batch sighting sync.
type SyncResult struct {
	Accepted   int        `json:"accepted"`
	Duplicates int        `json:"duplicates"`
	Rejected   int        `json:"rejected"`
	Items      []SyncItem `json:"items"`
}

// UploadTicket is a presigned location for a sighting photo.
type UploadTicket struct {
	Key string `json:"key"`
	URL string `json:"url"`
}
