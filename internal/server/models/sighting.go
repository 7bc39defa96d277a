// Package models defines the server-side records for sightings and their
// chat rooms.
package models

import "time"

// Sighting is the canonical record. ClientRef and SignatureDigest never
// leave the server.
type Sighting struct {
	ID              string    `db:"id" json:"id"`
	ClientRef       *string   `db:"client_ref" json:"-"`
	UploadedBy      string    `db:"uploaded_by" json:"uploadedBy"`
	Identification  string    `db:"identification" json:"identification"`
	Description     string    `db:"description" json:"description"`
	DateTime        time.Time `db:"date_time" json:"dateTime"`
	Latitude        float64   `db:"latitude" json:"latitude"`
	Longitude       float64   `db:"longitude" json:"longitude"`
	Image           string    `db:"img" json:"img"`
	SignatureDigest string    `db:"signature_digest" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

// SpeciesInfo is best-effort metadata for an identification.
type SpeciesInfo struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Abstract string `json:"abstract"`
	Genus    string `json:"genus"`
	Species  string `json:"species"`
}

// SightingDetails is a sighting plus whatever enrichment could be fetched.
type SightingDetails struct {
	Sighting
	Species  *SpeciesInfo `json:"species,omitempty"`
	MapImage string       `json:"mapImage,omitempty"`
}
