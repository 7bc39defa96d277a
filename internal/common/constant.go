// Package common contains shared constants and sentinel errors used across
// birdwatch components.
package common

const (
	// GuestUsername is reported when no username was ever recorded locally.
	GuestUsername = "Guest"

	// NoImage is the placeholder image reference for sightings captured
	// offline, when no upload could take place.
	NoImage = "default.jpeg"

	// SignatureSize is the number of random bytes in a device signature.
	// Hex encoding doubles it.
	SignatureSize = 16
)

// Live chat channel event names.
const (
	EventJoin    = "join"
	EventJoined  = "joined"
	EventMessage = "message"
	EventChat    = "chat"
	EventLeave   = "leave"
)

// SyncSightingsPath is the batch endpoint that drains the offline sighting queue.
const SyncSightingsPath = "/sync-sightings"
