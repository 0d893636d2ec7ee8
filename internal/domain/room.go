// Package domain holds the plain data the relay moves around.
package domain

// RoomID is supplied by clients on join. A room has no record of its own,
// it is the set of connections currently holding this id.
type RoomID string
