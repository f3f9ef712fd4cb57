package model

import "time"

// ConnID identifies a single live connection. An identity's ID is always the
// ID of the connection that logged it in.
type ConnID string

// Identity is a logged-in participant
type Identity struct {
	ID          ConnID
	DisplayName string
	JoinedAt    time.Time
	Busy        bool
	SessionID   SessionID // empty when not seated
}

// RosterEntry is the public view of an identity
type RosterEntry struct {
	ID          ConnID `json:"id"`
	DisplayName string `json:"displayName"`
	Busy        bool   `json:"busy"`
}

// Entry returns the roster view of the identity
func (i *Identity) Entry() RosterEntry {
	return RosterEntry{ID: i.ID, DisplayName: i.DisplayName, Busy: i.Busy}
}
