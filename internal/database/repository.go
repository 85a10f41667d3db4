package database

import (
	"context"
	"errors"

	"github.com/gymdesk/gymdesk/internal/recognize"
)

// ErrMemberNotFound is returned when a member ID does not exist.
var ErrMemberNotFound = errors.New("member not found")

// ErrAttendanceNotFound is returned when an attendance record ID does not exist.
var ErrAttendanceNotFound = errors.New("attendance record not found")

// MemberReader provides read-only access to the member registry.
type MemberReader interface {
	// Get retrieves a member by ID, returns ErrMemberNotFound if absent.
	Get(ctx context.Context, id string) (*Member, error)
	// List returns all members, newest first.
	List(ctx context.Context) ([]Member, error)
	// SearchByName returns members whose normalized name contains the
	// normalized query (lowercase, diacritics stripped).
	SearchByName(ctx context.Context, query string) ([]Member, error)
	// Count returns the total number of members.
	Count(ctx context.Context) (int, error)

	// Gallery returns the recognition gallery snapshot: active members
	// with an enrolled embedding. Rebuilt on every call so enrollments
	// and suspensions take effect on the next lookup.
	Gallery(ctx context.Context) ([]recognize.GalleryEntry, error)
	// PhoneBook returns active members for phone-suffix lookup.
	PhoneBook(ctx context.Context) ([]recognize.PhoneEntry, error)
}

// MemberWriter provides write access to the member registry.
type MemberWriter interface {
	MemberReader

	// Create inserts a new member and returns it with its assigned ID.
	Create(ctx context.Context, m Member) (*Member, error)
	// Update replaces a member's profile fields.
	Update(ctx context.Context, m Member) error
	// Delete removes a member and their ledger history.
	Delete(ctx context.Context, id string) error

	// SetEmbedding stores a member's face embedding, replacing any
	// previous enrollment.
	SetEmbedding(ctx context.Context, id string, embedding []float32) error
	// ClearEmbedding removes a member's face enrollment.
	ClearEmbedding(ctx context.Context, id string) error

	// AdjustTickets applies a ticket ledger movement and updates the
	// member's remaining credit atomically. delta is negative for use.
	AdjustTickets(ctx context.Context, id string, delta int, entryType TicketEntryType, note string) (*Member, error)
	// TicketHistory lists a member's ledger movements, newest first.
	TicketHistory(ctx context.Context, id string) ([]TicketEntry, error)
}

// AttendanceReader provides read-only access to the attendance log.
type AttendanceReader interface {
	// ListAttendance returns check-ins, newest first, up to limit
	// (0 = no limit).
	ListAttendance(ctx context.Context, limit int) ([]AttendanceRecord, error)
	// ListAttendanceByMember returns one member's check-ins, newest first.
	ListAttendanceByMember(ctx context.Context, memberID string) ([]AttendanceRecord, error)
}

// AttendanceWriter provides write access to the attendance log.
type AttendanceWriter interface {
	AttendanceReader

	// AddAttendance inserts a check-in record.
	AddAttendance(ctx context.Context, record AttendanceRecord) (*AttendanceRecord, error)
	// DeleteAttendance removes a check-in record and returns it, so the
	// caller can refund the consumed ticket.
	DeleteAttendance(ctx context.Context, id string) (*AttendanceRecord, error)
}

// Store bundles the registry and attendance interfaces the application
// needs end to end.
type Store interface {
	MemberWriter
	AttendanceWriter
}
