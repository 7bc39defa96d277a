// Package services contains the server-side business logic: sightings and
// their batch sync, signature-guarded edits, photo storage, and chat history.
// Handlers in httpapi and chathub call into it; it talks to PostgreSQL only
// through repomanager.
package services
