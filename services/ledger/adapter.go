package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"law_ledger_app_go/config"
)

// Ledger is the narrow write-once key -> hash interface to the external immutable store.
// Implementations must reject a second write to an existing key with ErrAlreadyAnchored.
type Ledger interface {
	// Submit commits hash under key and returns the ledger's reference for the write
	Submit(ctx context.Context, key Key, hash string) (string, error)

	// Fetch returns the hash committed under key, or ErrNotFound
	Fetch(ctx context.Context, key Key) (*Receipt, error)
}

// Key identifies one anchored log version
type Key struct {
	LogID   string
	Version int
}

func (k Key) String() string {
	return fmt.Sprintf("%s:v%d", k.LogID, k.Version)
}

// Receipt is what the ledger holds for a key
type Receipt struct {
	Hash      string `json:"hash"`
	Reference string `json:"reference"`
}

var (
	ErrNotFound        = errors.New("ledger: key not anchored")
	ErrAlreadyAnchored = errors.New("ledger: key already anchored")
	// ErrUnavailable marks transient failures worth retrying
	ErrUnavailable = errors.New("ledger: unavailable")
	// ErrRejected marks permanent refusals; retrying cannot succeed
	ErrRejected = errors.New("ledger: submission rejected")
)

// IsTransient reports whether a failed call may succeed when retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// New builds the ledger adapter selected by configuration
func New(cfg *config.Config) (Ledger, error) {
	switch cfg.LedgerDriver {
	case config.LedgerDriverMemory, "":
		return NewMemoryLedger(), nil
	case config.LedgerDriverPostgres:
		if cfg.LedgerDatabaseURL == "" {
			return nil, fmt.Errorf("LEDGER_DATABASE_URL is required for the postgres ledger")
		}
		return NewPostgresLedger(cfg.LedgerDatabaseURL)
	case config.LedgerDriverHTTP:
		if cfg.LedgerURL == "" {
			return nil, fmt.Errorf("LEDGER_URL is required for the http ledger")
		}
		return NewHTTPLedger(cfg.LedgerURL, cfg.LedgerAPIKey, &http.Client{Timeout: 30 * time.Second}), nil
	default:
		return nil, fmt.Errorf("ledger driver not implemented: %s", cfg.LedgerDriver)
	}
}

// Close releases resources held by adapters that own them, such as the postgres pool
func Close(l Ledger) error {
	if c, ok := l.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
