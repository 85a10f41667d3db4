// Package ledger implements the check-in service: it validates the member,
// consumes one ticket, and appends the attendance record.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gymdesk/gymdesk/internal/database"
)

// ErrNoCredit is returned when a member has no remaining tickets. Its text
// is shown verbatim on the kiosk.
var ErrNoCredit = errors.New("insufficient credit")

// ErrMemberInactive is returned when a suspended or expired member tries
// to check in.
var ErrMemberInactive = errors.New("membership not active")

// Service performs check-ins against the member registry.
type Service struct {
	store database.Store
}

// NewService creates a check-in service.
func NewService(store database.Store) *Service {
	return &Service{store: store}
}

// CheckIn consumes one ticket and records attendance for the member.
// Returns the member with the updated balance and the stored record.
func (s *Service) CheckIn(ctx context.Context, memberID string) (*database.Member, *database.AttendanceRecord, error) {
	member, err := s.store.Get(ctx, memberID)
	if err != nil {
		return nil, nil, err
	}
	if member.Status != database.StatusActive {
		return nil, nil, ErrMemberInactive
	}
	if member.RemainingTickets <= 0 {
		return nil, nil, ErrNoCredit
	}

	updated, err := s.store.AdjustTickets(ctx, memberID, -1, database.TicketUse, "check-in")
	if err != nil {
		return nil, nil, fmt.Errorf("consume ticket: %w", err)
	}

	record, err := s.store.AddAttendance(ctx, database.AttendanceRecord{
		MemberID:   memberID,
		MemberName: updated.Name,
	})
	if err != nil {
		// The ticket was already consumed; refund it so the balance stays
		// consistent with the attendance log.
		if _, refundErr := s.store.AdjustTickets(ctx, memberID, 1, database.TicketRefund, "check-in failed"); refundErr != nil {
			log.Printf("failed to refund ticket for member %s: %v", memberID, refundErr)
		}
		return nil, nil, fmt.Errorf("record attendance: %w", err)
	}

	log.Printf("check-in: %s (%s), %d tickets remaining", updated.Name, memberID, updated.RemainingTickets)
	return updated, record, nil
}

// DeleteAttendance removes a check-in record. When refund is true the
// consumed ticket is returned to the member.
func (s *Service) DeleteAttendance(ctx context.Context, recordID string, refund bool) error {
	record, err := s.store.DeleteAttendance(ctx, recordID)
	if err != nil {
		return err
	}
	if !refund {
		return nil
	}
	if _, err := s.store.AdjustTickets(ctx, record.MemberID, 1, database.TicketRefund, "attendance removed"); err != nil {
		if errors.Is(err, database.ErrMemberNotFound) {
			// Member was deleted after checking in; nothing to refund.
			return nil
		}
		return fmt.Errorf("refund ticket: %w", err)
	}
	return nil
}
