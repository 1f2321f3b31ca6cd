package ledger

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"law_ledger_app_go/logger"

	"github.com/lib/pq"
)

// PostgresLedger commits anchors to an append-only table in a separate PostgreSQL database.
// Rules on the table turn UPDATE and DELETE into no-ops so committed rows stay write-once.
type PostgresLedger struct {
	db *sql.DB
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS ledger_anchors (
	anchor_key TEXT PRIMARY KEY,
	hash       TEXT NOT NULL,
	seq        BIGSERIAL NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE OR REPLACE RULE ledger_anchors_no_update AS ON UPDATE TO ledger_anchors DO INSTEAD NOTHING;
CREATE OR REPLACE RULE ledger_anchors_no_delete AS ON DELETE TO ledger_anchors DO INSTEAD NOTHING;
`

// NewPostgresLedger connects and bootstraps the anchor table
func NewPostgresLedger(databaseURL string) (*PostgresLedger, error) {
	connector, err := pq.NewConnector(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger database url: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(4)

	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", classifyPQError(err))
	}

	logger.WithComponent("ledger").Info("Postgres ledger connection established")
	return &PostgresLedger{db: db}, nil
}

// Submit implements Ledger
func (p *PostgresLedger) Submit(ctx context.Context, key Key, hash string) (string, error) {
	var seq int64
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO ledger_anchors (anchor_key, hash) VALUES ($1, $2)
		 ON CONFLICT (anchor_key) DO NOTHING
		 RETURNING seq`,
		key.String(), hash,
	).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrAlreadyAnchored
	}
	if err != nil {
		return "", classifyPQError(err)
	}
	return postgresReference(seq), nil
}

// Fetch implements Ledger
func (p *PostgresLedger) Fetch(ctx context.Context, key Key) (*Receipt, error) {
	var (
		hash string
		seq  int64
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT hash, seq FROM ledger_anchors WHERE anchor_key = $1`,
		key.String(),
	).Scan(&hash, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifyPQError(err)
	}
	return &Receipt{Hash: hash, Reference: postgresReference(seq)}, nil
}

// Close releases the connection pool
func (p *PostgresLedger) Close() error {
	return p.db.Close()
}

func postgresReference(seq int64) string {
	return fmt.Sprintf("pg-seq-%d", seq)
}

// classifyPQError maps driver failures onto the ledger taxonomy.
// Connection loss, resource exhaustion and operator intervention are transient.
func classifyPQError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57", "40":
			return fmt.Errorf("%w: %s", ErrUnavailable, pqErr.Message)
		default:
			return fmt.Errorf("%w: %s (%s)", ErrRejected, pqErr.Message, pqErr.Code)
		}
	}
	if IsTransient(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
