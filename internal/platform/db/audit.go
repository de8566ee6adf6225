package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medledger/medledger/internal/platform/middleware"
)

// Execer is satisfied by *pgxpool.Pool, pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditStore persists relay access entries to relay_access_log. It implements
// middleware.AuditRecorder.
type AuditStore struct {
	db Execer
}

func NewAuditStore(db Execer) *AuditStore {
	return &AuditStore{db: db}
}

const insertAccessLog = `
	INSERT INTO relay_access_log (
		id, request_id, action, route, method,
		patient_address, ip_address, user_agent, status_code, accessed_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

func (s *AuditStore) RecordAccess(ctx context.Context, e middleware.AuditEntry) error {
	_, err := s.db.Exec(ctx, insertAccessLog,
		uuid.New(), nullable(e.RequestID), e.Action, e.Route, e.Method,
		patientColumn(e.PatientAddress), nullable(e.IPAddress), nullable(e.UserAgent), e.StatusCode, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert relay access log: %w", err)
	}
	return nil
}

// patientColumn keeps only well-formed addresses, lowercased so checksummed
// and plain forms of one address land on the same rows. The path parameter is
// caller input; anything else is stored as NULL and survives in the log line.
func patientColumn(addr string) *string {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return nil
	}
	return nullable(strings.ToLower(addr))
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
