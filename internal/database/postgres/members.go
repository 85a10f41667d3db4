package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gymdesk/gymdesk/internal/database"
	"github.com/gymdesk/gymdesk/internal/recognize"
	"github.com/pgvector/pgvector-go"
)

// MemberStore implements database.Store on PostgreSQL.
type MemberStore struct {
	pool *Pool
}

var _ database.Store = (*MemberStore)(nil)

// NewMemberStore creates a store over an existing pool.
func NewMemberStore(pool *Pool) *MemberStore {
	return &MemberStore{pool: pool}
}

// Close closes the underlying pool.
func (s *MemberStore) Close() error {
	return s.pool.Close()
}

const memberColumns = `
	id, name, phone, join_date, total_tickets, remaining_tickets,
	status, embedding::text, embedding_dim, created_at, updated_at
`

// scanMember scans one member row. The embedding arrives as the vector's
// text form because pgvector scanning cannot represent SQL NULL.
func scanMember(row interface{ Scan(...any) error }) (*database.Member, error) {
	var m database.Member
	var status string
	var rawEmbedding sql.NullString

	err := row.Scan(
		&m.ID, &m.Name, &m.Phone, &m.JoinDate, &m.TotalTickets, &m.RemainingTickets,
		&status, &rawEmbedding, &m.EmbeddingDim, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Status = database.MemberStatus(status)

	if rawEmbedding.Valid && rawEmbedding.String != "" {
		var vec pgvector.Vector
		if err := vec.Scan(rawEmbedding.String); err != nil {
			return nil, fmt.Errorf("parse embedding: %w", err)
		}
		m.Embedding = vec.Slice()
	}
	return &m, nil
}

// Get retrieves a member by ID.
func (s *MemberStore) Get(ctx context.Context, id string) (*database.Member, error) {
	row := s.pool.QueryRow(ctx, "SELECT"+memberColumns+"FROM members WHERE id = $1", id)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query member: %w", err)
	}
	return m, nil
}

func (s *MemberStore) queryMembers(ctx context.Context, query string, args ...any) ([]database.Member, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []database.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

// List returns all members, newest first.
func (s *MemberStore) List(ctx context.Context) ([]database.Member, error) {
	return s.queryMembers(ctx, "SELECT"+memberColumns+"FROM members ORDER BY created_at DESC, id")
}

// SearchByName returns members whose normalized name contains the
// normalized query.
func (s *MemberStore) SearchByName(ctx context.Context, query string) ([]database.Member, error) {
	pattern := "%" + database.NormalizeName(query) + "%"
	return s.queryMembers(ctx,
		"SELECT"+memberColumns+"FROM members WHERE name_normalized LIKE $1 ORDER BY created_at DESC, id",
		pattern)
}

// Count returns the total number of members.
func (s *MemberStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM members").Scan(&count); err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

// Gallery returns the recognition gallery snapshot: active members with
// an enrolled embedding, ordered by ID for deterministic matching.
func (s *MemberStore) Gallery(ctx context.Context) ([]recognize.GalleryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, embedding
		FROM members
		WHERE status = 'active' AND embedding IS NOT NULL
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []recognize.GalleryEntry
	for rows.Next() {
		var id string
		var vec pgvector.Vector
		if err := rows.Scan(&id, &vec); err != nil {
			return nil, fmt.Errorf("scan gallery entry: %w", err)
		}
		entries = append(entries, recognize.GalleryEntry{MemberID: id, Embedding: vec.Slice()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gallery: %w", err)
	}
	return entries, nil
}

// PhoneBook returns active members for phone-suffix lookup.
func (s *MemberStore) PhoneBook(ctx context.Context) ([]recognize.PhoneEntry, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, phone FROM members WHERE status = 'active' ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []recognize.PhoneEntry
	for rows.Next() {
		var e recognize.PhoneEntry
		if err := rows.Scan(&e.MemberID, &e.Phone); err != nil {
			return nil, fmt.Errorf("scan phone entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate phone book: %w", err)
	}
	return entries, nil
}

// Create inserts a new member.
func (s *MemberStore) Create(ctx context.Context, m database.Member) (*database.Member, error) {
	if m.Status == "" {
		m.Status = database.StatusActive
	}
	if !m.Status.Valid() {
		return nil, fmt.Errorf("invalid member status %q", m.Status)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO members (name, name_normalized, phone, join_date, total_tickets, remaining_tickets, status)
		VALUES ($1, $2, $3, COALESCE(NULLIF($4, '0001-01-01'::date), CURRENT_DATE), $5, $6, $7)
		RETURNING`+memberColumns,
		m.Name, database.NormalizeName(m.Name), m.Phone, m.JoinDate,
		m.TotalTickets, m.RemainingTickets, string(m.Status),
	)
	created, err := scanMember(row)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	return created, nil
}

// Update replaces a member's profile fields. The embedding is managed
// separately through SetEmbedding/ClearEmbedding.
func (s *MemberStore) Update(ctx context.Context, m database.Member) error {
	if !m.Status.Valid() {
		return fmt.Errorf("invalid member status %q", m.Status)
	}
	result, err := s.pool.Exec(ctx, `
		UPDATE members
		SET name = $2, name_normalized = $3, phone = $4, join_date = $5,
		    total_tickets = $6, remaining_tickets = $7, status = $8, updated_at = NOW()
		WHERE id = $1
	`, m.ID, m.Name, database.NormalizeName(m.Name), m.Phone, m.JoinDate,
		m.TotalTickets, m.RemainingTickets, string(m.Status))
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	return requireRow(result)
}

// Delete removes a member. Attendance and ticket history cascade.
func (s *MemberStore) Delete(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, "DELETE FROM members WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return requireRow(result)
}

// SetEmbedding stores a member's face embedding, replacing any previous
// enrollment.
func (s *MemberStore) SetEmbedding(ctx context.Context, id string, embedding []float32) error {
	if len(embedding) == 0 {
		return errors.New("embedding is empty")
	}
	result, err := s.pool.Exec(ctx, `
		UPDATE members SET embedding = $2, embedding_dim = $3, updated_at = NOW() WHERE id = $1
	`, id, pgvector.NewVector(embedding), len(embedding))
	if err != nil {
		return fmt.Errorf("set embedding: %w", err)
	}
	return requireRow(result)
}

// ClearEmbedding removes a member's face enrollment.
func (s *MemberStore) ClearEmbedding(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE members SET embedding = NULL, embedding_dim = 0, updated_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("clear embedding: %w", err)
	}
	return requireRow(result)
}

// AdjustTickets applies a ledger movement and updates the member's
// remaining credit in one transaction.
func (s *MemberStore) AdjustTickets(ctx context.Context, id string, delta int, entryType database.TicketEntryType, note string) (*database.Member, error) {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Only purchases raise the lifetime total; refunds restore remaining
	// credit without counting as a new purchase.
	totalDelta := 0
	if entryType == database.TicketAdd && delta > 0 {
		totalDelta = delta
	}
	row := tx.QueryRowContext(ctx, `
		UPDATE members
		SET remaining_tickets = remaining_tickets + $2,
		    total_tickets = total_tickets + $3,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING`+memberColumns,
		id, delta, totalDelta)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("adjust tickets: %w", err)
	}

	amount := delta
	if amount < 0 {
		amount = -amount
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ticket_entries (member_id, entry_type, amount, balance, note)
		VALUES ($1, $2, $3, $4, $5)
	`, id, string(entryType), amount, m.RemainingTickets, note)
	if err != nil {
		return nil, fmt.Errorf("insert ticket entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit ticket adjustment: %w", err)
	}
	return m, nil
}

// TicketHistory lists a member's ledger movements, newest first.
func (s *MemberStore) TicketHistory(ctx context.Context, id string) ([]database.TicketEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, member_id, entry_type, amount, balance, note, created_at
		FROM ticket_entries
		WHERE member_id = $1
		ORDER BY created_at DESC, id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []database.TicketEntry
	for rows.Next() {
		var e database.TicketEntry
		var entryType string
		if err := rows.Scan(&e.ID, &e.MemberID, &entryType, &e.Amount, &e.Balance, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket entry: %w", err)
		}
		e.Type = database.TicketEntryType(entryType)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticket entries: %w", err)
	}
	return entries, nil
}

// requireRow converts a zero-rows-affected result into ErrMemberNotFound.
func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return database.ErrMemberNotFound
	}
	return nil
}
