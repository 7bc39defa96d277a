// Package services contains the application services behind the birdwatch CLI:
// sighting submission and edits, and the device identity (username).
//
// Services pick the live or queued path from the connectivity monitor. The
// queued path always appears to succeed; only an online request the remote
// service refuses is returned to the caller.
package services
