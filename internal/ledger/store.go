package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/itopex/opex-backend/internal/fiscal"
)

// Store persists the period ledger, execution records and transfers. Get
// methods return (nil, nil) when nothing is stored.
type Store interface {
	GetPeriod(ctx context.Context, month fiscal.Month) (*PeriodStatus, error)
	SavePeriod(ctx context.Context, p *PeriodStatus) error

	GetRecord(ctx context.Context, projID string, month fiscal.Month) (*ExecutionRecord, error)
	// SaveRecord inserts or updates by (proj_id, yyyymm).
	SaveRecord(ctx context.Context, r *ExecutionRecord) error
	ListRecords(ctx context.Context, month fiscal.Month) ([]ExecutionRecord, error)
	ListProjectRecords(ctx context.Context, projID string) ([]ExecutionRecord, error)
	DeleteProjectRecords(ctx context.Context, projID string) error

	// FindProject locks the project row when called inside Tx.
	FindProject(ctx context.Context, projID string) (*ProjectRef, error)
	ListProjects(ctx context.Context, fiscalYear int) ([]ProjectRef, error)

	AppendTransfer(ctx context.Context, t *Transfer) error
	ListTransfers(ctx context.Context, f TransferFilter) ([]Transfer, error)
	TransferTotals(ctx context.Context, projID string, month fiscal.Month) (in, out decimal.Decimal, err error)

	// Tx runs fn atomically; fn must use the Store it is given.
	Tx(ctx context.Context, fn func(Store) error) error
}
