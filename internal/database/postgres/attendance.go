package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gymdesk/gymdesk/internal/database"
)

// ListAttendance returns check-ins, newest first. limit 0 means no limit.
func (s *MemberStore) ListAttendance(ctx context.Context, limit int) ([]database.AttendanceRecord, error) {
	query := `
		SELECT id, member_id, member_name, checked_in_at
		FROM attendance
		ORDER BY checked_in_at DESC, id
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}
	return s.queryAttendance(ctx, query, args...)
}

// ListAttendanceByMember returns one member's check-ins, newest first.
func (s *MemberStore) ListAttendanceByMember(ctx context.Context, memberID string) ([]database.AttendanceRecord, error) {
	return s.queryAttendance(ctx, `
		SELECT id, member_id, member_name, checked_in_at
		FROM attendance
		WHERE member_id = $1
		ORDER BY checked_in_at DESC, id
	`, memberID)
}

func (s *MemberStore) queryAttendance(ctx context.Context, query string, args ...any) ([]database.AttendanceRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		var r database.AttendanceRecord
		if err := rows.Scan(&r.ID, &r.MemberID, &r.MemberName, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}

// AddAttendance inserts a check-in record. The member name is stored as a
// snapshot so the log survives later renames. A zero Timestamp defaults
// to the database clock.
func (s *MemberStore) AddAttendance(ctx context.Context, record database.AttendanceRecord) (*database.AttendanceRecord, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO attendance (member_id, member_name, checked_in_at)
		VALUES ($1, $2, COALESCE(NULLIF($3, '0001-01-01'::timestamptz), NOW()))
		RETURNING id, member_id, member_name, checked_in_at
	`, record.MemberID, record.MemberName, record.Timestamp)

	var r database.AttendanceRecord
	if err := row.Scan(&r.ID, &r.MemberID, &r.MemberName, &r.Timestamp); err != nil {
		return nil, fmt.Errorf("insert attendance: %w", err)
	}
	return &r, nil
}

// DeleteAttendance removes a check-in record and returns it so the caller
// can refund the consumed ticket.
func (s *MemberStore) DeleteAttendance(ctx context.Context, id string) (*database.AttendanceRecord, error) {
	row := s.pool.QueryRow(ctx, `
		DELETE FROM attendance WHERE id = $1
		RETURNING id, member_id, member_name, checked_in_at
	`, id)

	var r database.AttendanceRecord
	err := row.Scan(&r.ID, &r.MemberID, &r.MemberName, &r.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrAttendanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete attendance: %w", err)
	}
	return &r, nil
}
