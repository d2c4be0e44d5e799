package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/itopex/opex-backend/internal/fiscal"
)

type recordKey struct {
	projID string
	month  fiscal.Month
}

type memData struct {
	periods   map[fiscal.Month]PeriodStatus
	records   map[recordKey]ExecutionRecord
	projects  map[string]ProjectRef
	transfers []Transfer
	nextID    uint
}

func (d *memData) clone() *memData {
	cp := &memData{
		periods:   make(map[fiscal.Month]PeriodStatus, len(d.periods)),
		records:   make(map[recordKey]ExecutionRecord, len(d.records)),
		projects:  make(map[string]ProjectRef, len(d.projects)),
		transfers: append([]Transfer(nil), d.transfers...),
		nextID:    d.nextID,
	}
	for k, v := range d.periods {
		cp.periods[k] = v
	}
	for k, v := range d.records {
		cp.records[k] = v
	}
	for k, v := range d.projects {
		cp.projects[k] = v
	}
	return cp
}

// MemoryStore is an in-process Store. Tx holds the store lock for the
// duration of fn and restores a snapshot when fn fails.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memData{
		periods:  make(map[fiscal.Month]PeriodStatus),
		records:  make(map[recordKey]ExecutionRecord),
		projects: make(map[string]ProjectRef),
		nextID:   1,
	}}
}

// AddProject registers a project the ledger can reference.
func (m *MemoryStore) AddProject(p ProjectRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.projects[p.ProjID] = p
}

func (m *MemoryStore) GetPeriod(ctx context.Context, month fiscal.Month) (*PeriodStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m.data).GetPeriod(ctx, month)
}

func (m *MemoryStore) SavePeriod(ctx context.Context, p *PeriodStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m.data).SavePeriod(ctx, p)
}

func (m *MemoryStore) GetRecord(ctx context.Context, projID string, month fiscal.Month) (*ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m.data).GetRecord(ctx, projID, month)
}

func (m *MemoryStore) SaveRecord(ctx context.Context, r *ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m.data).SaveRecord(ctx, r)
}

func (m *MemoryStore) ListRecords(ctx context.Context, month fiscal.Month) ([]ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m.data).ListRecords(ctx, month)
}

func (m *MemoryStore) ListProjectRecords(ctx context.Context, projID string) ([]ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m.data).ListProjectRecords(ctx, projID)
}

func (m *MemoryStore) DeleteProjectRecords(ctx context.Context, projID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m.data).DeleteProjectRecords(ctx, projID)
}

func (m *MemoryStore) FindProject(ctx context.Context, projID string) (*ProjectRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m.data).FindProject(ctx, projID)
}

func (m *MemoryStore) ListProjects(ctx context.Context, fiscalYear int) ([]ProjectRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m.data).ListProjects(ctx, fiscalYear)
}

func (m *MemoryStore) AppendTransfer(ctx context.Context, t *Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m.data).AppendTransfer(ctx, t)
}

func (m *MemoryStore) ListTransfers(ctx context.Context, f TransferFilter) ([]Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m.data).ListTransfers(ctx, f)
}

func (m *MemoryStore) TransferTotals(ctx context.Context, projID string, month fiscal.Month) (decimal.Decimal, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m.data).TransferTotals(ctx, projID, month)
}

func (m *MemoryStore) Tx(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.data.clone()
	if err := fn((*memTx)(m.data)); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

// memTx operates on the data without locking; the caller holds the lock.
type memTx memData

func (d *memTx) GetPeriod(_ context.Context, month fiscal.Month) (*PeriodStatus, error) {
	p, ok := d.periods[month]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (d *memTx) SavePeriod(_ context.Context, p *PeriodStatus) error {
	d.periods[p.YYYYMM] = *p
	return nil
}

func (d *memTx) GetRecord(_ context.Context, projID string, month fiscal.Month) (*ExecutionRecord, error) {
	r, ok := d.records[recordKey{projID, month}]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (d *memTx) SaveRecord(_ context.Context, r *ExecutionRecord) error {
	key := recordKey{r.ProjID, r.YYYYMM}
	if existing, ok := d.records[key]; ok {
		r.ID = existing.ID
	} else if r.ID == 0 {
		r.ID = d.nextID
		d.nextID++
	}
	d.records[key] = *r
	return nil
}

func (d *memTx) ListRecords(_ context.Context, month fiscal.Month) ([]ExecutionRecord, error) {
	var out []ExecutionRecord
	for k, r := range d.records {
		if k.month == month {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjID < out[j].ProjID })
	return out, nil
}

func (d *memTx) ListProjectRecords(_ context.Context, projID string) ([]ExecutionRecord, error) {
	var out []ExecutionRecord
	for k, r := range d.records {
		if k.projID == projID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].YYYYMM < out[j].YYYYMM })
	return out, nil
}

func (d *memTx) DeleteProjectRecords(_ context.Context, projID string) error {
	for k := range d.records {
		if k.projID == projID {
			delete(d.records, k)
		}
	}
	return nil
}

func (d *memTx) FindProject(_ context.Context, projID string) (*ProjectRef, error) {
	p, ok := d.projects[projID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (d *memTx) ListProjects(_ context.Context, fiscalYear int) ([]ProjectRef, error) {
	var out []ProjectRef
	for _, p := range d.projects {
		if p.FiscalYear == fiscalYear {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjID < out[j].ProjID })
	return out, nil
}

func (d *memTx) AppendTransfer(_ context.Context, t *Transfer) error {
	t.TransferID = uint(len(d.transfers) + 1)
	d.transfers = append(d.transfers, *t)
	return nil
}

func (d *memTx) ListTransfers(_ context.Context, f TransferFilter) ([]Transfer, error) {
	var out []Transfer
	for i := len(d.transfers) - 1; i >= 0; i-- {
		t := d.transfers[i]
		if f.Month != "" && t.TransferYYYYMM != f.Month {
			continue
		}
		if f.ProjID != "" && t.FromProjID != f.ProjID && t.ToProjID != f.ProjID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (d *memTx) TransferTotals(_ context.Context, projID string, month fiscal.Month) (decimal.Decimal, decimal.Decimal, error) {
	in, out := decimal.Zero, decimal.Zero
	for _, t := range d.transfers {
		if t.TransferYYYYMM != month || t.Status != TransferApplied {
			continue
		}
		if t.ToProjID == projID {
			in = in.Add(t.TransferAmount)
		}
		if t.FromProjID == projID {
			out = out.Add(t.TransferAmount)
		}
	}
	return in, out, nil
}

func (d *memTx) Tx(_ context.Context, fn func(Store) error) error {
	return fn(d)
}
