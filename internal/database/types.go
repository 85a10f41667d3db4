// Package database defines the member registry, ticket ledger, and
// attendance log storage interfaces, with a PostgreSQL implementation and
// an in-memory mock for tests.
package database

import (
	"time"
)

// MemberStatus is the lifecycle state of a membership. Only active
// members may check in or appear in the recognition gallery.
type MemberStatus string

// Membership states.
const (
	StatusActive    MemberStatus = "active"
	StatusSuspended MemberStatus = "suspended"
	StatusExpired   MemberStatus = "expired"
)

// Valid reports whether s is a known membership status.
func (s MemberStatus) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusExpired:
		return true
	}
	return false
}

// Member is one enrolled gym member. A member carries at most one face
// embedding; re-enrollment replaces it.
type Member struct {
	ID               string
	Name             string
	Phone            string
	JoinDate         time.Time
	TotalTickets     int
	RemainingTickets int
	Status           MemberStatus
	Embedding        []float32 // nil until a face is enrolled
	EmbeddingDim     int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Enrolled reports whether the member has a face embedding.
func (m *Member) Enrolled() bool {
	return len(m.Embedding) > 0
}

// AttendanceRecord is one committed check-in. MemberName is a snapshot
// taken at check-in time so the log survives later renames.
type AttendanceRecord struct {
	ID         string    `json:"id"`
	MemberID   string    `json:"member_id"`
	MemberName string    `json:"member_name"`
	Timestamp  time.Time `json:"timestamp"`
}

// TicketEntryType classifies ticket ledger movements.
type TicketEntryType string

// Ticket ledger entry types.
const (
	TicketAdd    TicketEntryType = "add"
	TicketUse    TicketEntryType = "use"
	TicketRefund TicketEntryType = "refund"
)

// TicketEntry is one movement in a member's credit ledger. Balance is the
// remaining credit after the movement was applied.
type TicketEntry struct {
	ID        string          `json:"id"`
	MemberID  string          `json:"member_id"`
	Type      TicketEntryType `json:"type"`
	Amount    int             `json:"amount"`
	Balance   int             `json:"balance"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
