// Package legacy reads members out of the old front-desk MariaDB so they
// can be imported into the registry. Read-only; the old system keeps
// running until the switchover.
package legacy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/gymdesk/gymdesk/internal/database"
)

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Count returns the number of members in the legacy system.
func (p *Pool) Count(ctx context.Context) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM member").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting legacy members: %w", err)
	}
	return count, nil
}

// ListMembers reads all members from the legacy `member` table, mapped to
// registry members. The legacy system has no face embeddings; members are
// imported unenrolled. Legacy status flags: 0 active, 1 suspended,
// anything else expired.
func (p *Pool) ListMembers(ctx context.Context) ([]database.Member, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT name, phone, reg_date, total_cnt, remain_cnt, status
		FROM member
		ORDER BY reg_date, name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying legacy members: %w", err)
	}
	defer rows.Close()

	var members []database.Member
	for rows.Next() {
		var m database.Member
		var phone sql.NullString
		var regDate sql.NullTime
		var statusFlag int

		if err := rows.Scan(&m.Name, &phone, &regDate, &m.TotalTickets, &m.RemainingTickets, &statusFlag); err != nil {
			return nil, fmt.Errorf("scanning legacy member: %w", err)
		}
		m.Phone = phone.String
		if regDate.Valid {
			m.JoinDate = regDate.Time
		}
		switch statusFlag {
		case 0:
			m.Status = database.StatusActive
		case 1:
			m.Status = database.StatusSuspended
		default:
			m.Status = database.StatusExpired
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating legacy members: %w", err)
	}
	return members, nil
}
