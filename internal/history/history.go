// Package history keeps an append-only ledger of settled rounds. It is never
// read back to restore a table; tables live in memory only.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/skeesen8/blackjack/pkg/types"
)

// Round is one settled round as it is written to the ledger.
type Round struct {
	TableID    string               `json:"table_id"`
	Round      int                  `json:"round"`
	FinishedAt time.Time            `json:"finished_at"`
	DealerHand types.Hand           `json:"dealer_hand"`
	Results    []types.PlayerResult `json:"results"`
}

type Recorder interface {
	Record(ctx context.Context, r Round) error
	Close() error
}

// Lister is implemented by recorders that can read the ledger back for the
// history endpoint.
type Lister interface {
	Recent(ctx context.Context, tableID string, limit int) ([]Round, error)
}

var (
	ErrQueueFull   = errors.New("history: queue full")
	ErrClosed      = errors.New("history: recorder closed")
	ErrUnsupported = errors.New("history: listing not supported")
)

const (
	DriverNone     = "none"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open picks a backend by driver name. An empty driver records nothing.
func Open(driver, dsn string, log *zap.Logger) (Recorder, error) {
	switch driver {
	case "", DriverNone:
		return Nop{}, nil
	case DriverPostgres:
		return OpenPostgres(dsn, log)
	case DriverSQLite:
		return OpenSQLite(dsn)
	default:
		return nil, fmt.Errorf("history: unknown driver %q", driver)
	}
}

type Nop struct{}

func (Nop) Record(context.Context, Round) error { return nil }
func (Nop) Close() error                        { return nil }
