// Package mock provides in-memory implementations of the database
// interfaces for testing.
package mock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gymdesk/gymdesk/internal/database"
	"github.com/gymdesk/gymdesk/internal/recognize"
)

// Store is an in-memory database.Store with per-method error injection.
type Store struct {
	mu         sync.RWMutex
	members    map[string]*database.Member
	attendance []database.AttendanceRecord
	tickets    map[string][]database.TicketEntry

	// Error injection
	GetError        error
	ListError       error
	CreateError     error
	UpdateError     error
	DeleteError     error
	GalleryError    error
	PhoneBookError  error
	EmbeddingError  error
	TicketsError    error
	AttendanceError error
}

// NewStore creates an empty mock store.
func NewStore() *Store {
	return &Store{
		members: make(map[string]*database.Member),
		tickets: make(map[string][]database.TicketEntry),
	}
}

// AddMember seeds a member directly, bypassing validation. Missing IDs
// and timestamps are filled in.
func (s *Store) AddMember(m database.Member) database.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.members[m.ID] = &m
	return m
}

// Get retrieves a member by ID.
func (s *Store) Get(ctx context.Context, id string) (*database.Member, error) {
	if s.GetError != nil {
		return nil, s.GetError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return nil, database.ErrMemberNotFound
	}
	copied := *m
	return &copied, nil
}

// List returns all members, newest first.
func (s *Store) List(ctx context.Context) ([]database.Member, error) {
	if s.ListError != nil {
		return nil, s.ListError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := make([]database.Member, 0, len(s.members))
	for _, m := range s.members {
		members = append(members, *m)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].CreatedAt.Equal(members[j].CreatedAt) {
			return members[i].ID < members[j].ID
		}
		return members[i].CreatedAt.After(members[j].CreatedAt)
	})
	return members, nil
}

// SearchByName returns members whose normalized name contains the query.
func (s *Store) SearchByName(ctx context.Context, query string) ([]database.Member, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	normalized := database.NormalizeName(query)
	var matches []database.Member
	for _, m := range all {
		if strings.Contains(database.NormalizeName(m.Name), normalized) {
			matches = append(matches, m)
		}
	}
	return matches, nil
}

// Count returns the number of members.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s.ListError != nil {
		return 0, s.ListError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members), nil
}

// Gallery returns active members with an embedding, ordered by ID.
func (s *Store) Gallery(ctx context.Context) ([]recognize.GalleryEntry, error) {
	if s.GalleryError != nil {
		return nil, s.GalleryError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []recognize.GalleryEntry
	for _, m := range s.members {
		if m.Status != database.StatusActive || !m.Enrolled() {
			continue
		}
		entries = append(entries, recognize.GalleryEntry{MemberID: m.ID, Embedding: m.Embedding})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].MemberID < entries[j].MemberID })
	return entries, nil
}

// PhoneBook returns active members for suffix lookup, ordered by ID.
func (s *Store) PhoneBook(ctx context.Context) ([]recognize.PhoneEntry, error) {
	if s.PhoneBookError != nil {
		return nil, s.PhoneBookError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []recognize.PhoneEntry
	for _, m := range s.members {
		if m.Status != database.StatusActive {
			continue
		}
		entries = append(entries, recognize.PhoneEntry{MemberID: m.ID, Phone: m.Phone})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].MemberID < entries[j].MemberID })
	return entries, nil
}

// Create inserts a new member.
func (s *Store) Create(ctx context.Context, m database.Member) (*database.Member, error) {
	if s.CreateError != nil {
		return nil, s.CreateError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = uuid.NewString()
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	s.members[m.ID] = &m
	copied := m
	return &copied, nil
}

// Update replaces a member's profile fields.
func (s *Store) Update(ctx context.Context, m database.Member) error {
	if s.UpdateError != nil {
		return s.UpdateError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.members[m.ID]
	if !ok {
		return database.ErrMemberNotFound
	}
	m.Embedding = existing.Embedding
	m.EmbeddingDim = existing.EmbeddingDim
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = time.Now()
	s.members[m.ID] = &m
	return nil
}

// Delete removes a member.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s.DeleteError != nil {
		return s.DeleteError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[id]; !ok {
		return database.ErrMemberNotFound
	}
	delete(s.members, id)
	delete(s.tickets, id)
	return nil
}

// SetEmbedding stores a member's face embedding.
func (s *Store) SetEmbedding(ctx context.Context, id string, embedding []float32) error {
	if s.EmbeddingError != nil {
		return s.EmbeddingError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return database.ErrMemberNotFound
	}
	m.Embedding = append([]float32(nil), embedding...)
	m.EmbeddingDim = len(embedding)
	m.UpdatedAt = time.Now()
	return nil
}

// ClearEmbedding removes a member's enrollment.
func (s *Store) ClearEmbedding(ctx context.Context, id string) error {
	if s.EmbeddingError != nil {
		return s.EmbeddingError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return database.ErrMemberNotFound
	}
	m.Embedding = nil
	m.EmbeddingDim = 0
	m.UpdatedAt = time.Now()
	return nil
}

// AdjustTickets applies a ledger movement and updates remaining credit.
func (s *Store) AdjustTickets(ctx context.Context, id string, delta int, entryType database.TicketEntryType, note string) (*database.Member, error) {
	if s.TicketsError != nil {
		return nil, s.TicketsError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil, database.ErrMemberNotFound
	}
	m.RemainingTickets += delta
	if entryType == database.TicketAdd && delta > 0 {
		m.TotalTickets += delta
	}
	m.UpdatedAt = time.Now()

	amount := delta
	if amount < 0 {
		amount = -amount
	}
	s.tickets[id] = append(s.tickets[id], database.TicketEntry{
		ID:        uuid.NewString(),
		MemberID:  id,
		Type:      entryType,
		Amount:    amount,
		Balance:   m.RemainingTickets,
		Note:      note,
		CreatedAt: time.Now(),
	})

	copied := *m
	return &copied, nil
}

// TicketHistory lists a member's ledger movements, newest first.
func (s *Store) TicketHistory(ctx context.Context, id string) ([]database.TicketEntry, error) {
	if s.TicketsError != nil {
		return nil, s.TicketsError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := append([]database.TicketEntry(nil), s.tickets[id]...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}

// ListAttendance returns check-ins, newest first.
func (s *Store) ListAttendance(ctx context.Context, limit int) ([]database.AttendanceRecord, error) {
	if s.AttendanceError != nil {
		return nil, s.AttendanceError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := append([]database.AttendanceRecord(nil), s.attendance...)
	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp.After(records[j].Timestamp) })
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// ListAttendanceByMember returns one member's check-ins, newest first.
func (s *Store) ListAttendanceByMember(ctx context.Context, memberID string) ([]database.AttendanceRecord, error) {
	all, err := s.ListAttendance(ctx, 0)
	if err != nil {
		return nil, err
	}
	var records []database.AttendanceRecord
	for _, r := range all {
		if r.MemberID == memberID {
			records = append(records, r)
		}
	}
	return records, nil
}

// AddAttendance inserts a check-in record.
func (s *Store) AddAttendance(ctx context.Context, record database.AttendanceRecord) (*database.AttendanceRecord, error) {
	if s.AttendanceError != nil {
		return nil, s.AttendanceError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	s.attendance = append(s.attendance, record)
	copied := record
	return &copied, nil
}

// DeleteAttendance removes a check-in record and returns it.
func (s *Store) DeleteAttendance(ctx context.Context, id string) (*database.AttendanceRecord, error) {
	if s.AttendanceError != nil {
		return nil, s.AttendanceError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.attendance {
		if r.ID == id {
			s.attendance = append(s.attendance[:i], s.attendance[i+1:]...)
			copied := r
			return &copied, nil
		}
	}
	return nil, database.ErrAttendanceNotFound
}
