// Package postgres persists ledger entries durably. Unlike the in-memory
// store it has no cap, so no eviction ever happens; retention/purge is an
// external operational concern.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"sentra/internal/audit"
	id "sentra/pkg/domain"
)

type Store struct {
	pool *pgxpool.Pool
}

// New creates a Postgres-backed ledger store over an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool and verifies connectivity.
func Connect(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	const query = `
		INSERT INTO audit_entries (
			id, ts, action, outcome, actor_id, session_id, source_ip,
			resource, risk_level, hipaa_ok, nphies_ok, phi_touched,
			authorized, request_id, reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.pool.Exec(ctx, query,
		uuid.UUID(entry.ID),
		entry.Timestamp,
		string(entry.Action),
		string(entry.Outcome),
		nullable(entry.ActorID),
		nullable(entry.SessionID),
		entry.SourceIP,
		nullable(entry.Resource),
		string(entry.RiskLevel),
		entry.Flags.HIPAAOk,
		entry.Flags.NPHIESOk,
		entry.Flags.PHITouched,
		entry.Flags.Authorized,
		nullable(entry.RequestID),
		nullable(entry.Reason),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.ActorID != "" {
		conds = append(conds, "actor_id = "+arg(filter.ActorID))
	}
	if filter.Action != "" {
		conds = append(conds, "action = "+arg(string(filter.Action)))
	}
	if !filter.From.IsZero() {
		conds = append(conds, "ts >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "ts <= "+arg(filter.To))
	}

	query := `
		SELECT id, ts, action, outcome, actor_id, session_id, source_ip,
		       resource, risk_level, hipaa_ok, nphies_ok, phi_touched,
		       authorized, request_id, reason
		FROM audit_entries
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY ts DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT " + arg(limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var (
			entry     audit.Entry
			entryID   uuid.UUID
			ts        time.Time
			action    string
			outcome   string
			riskLevel string
			actorID, sessionID, resource, requestID, reason *string
		)
		if err := rows.Scan(
			&entryID, &ts, &action, &outcome, &actorID, &sessionID,
			&entry.SourceIP, &resource, &riskLevel,
			&entry.Flags.HIPAAOk, &entry.Flags.NPHIESOk,
			&entry.Flags.PHITouched, &entry.Flags.Authorized,
			&requestID, &reason,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.ID = id.EntryID(entryID)
		entry.Timestamp = ts
		entry.Action = audit.Action(action)
		entry.Outcome = audit.Outcome(outcome)
		entry.RiskLevel = audit.RiskLevel(riskLevel)
		entry.ActorID = deref(actorID)
		entry.SessionID = deref(sessionID)
		entry.Resource = deref(resource)
		entry.RequestID = deref(requestID)
		entry.Reason = deref(reason)
		out = append(out, entry)
	}
	return out, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
