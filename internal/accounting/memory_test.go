package accounting

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oomaallah/hotelops/internal/shared"
)

type ledgerState struct {
	accounts map[uuid.UUID]Account
	mappings map[string]uuid.UUID
	entries  map[uuid.UUID]JournalEntry
	lines    []JournalLine
	links    map[string]uuid.UUID
	// documents holds stampable source documents and their posted entry id.
	documents map[uuid.UUID]uuid.UUID
}

func (s ledgerState) clone() ledgerState {
	return ledgerState{
		accounts:  maps.Clone(s.accounts),
		mappings:  maps.Clone(s.mappings),
		entries:   maps.Clone(s.entries),
		lines:     slices.Clone(s.lines),
		links:     maps.Clone(s.links),
		documents: maps.Clone(s.documents),
	}
}

// memoryRepo is an in-memory ledger store. Transactions run serially on a
// copy of the state that is kept only when fn succeeds.
type memoryRepo struct {
	mu    sync.Mutex
	state ledgerState
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: ledgerState{
		accounts:  map[uuid.UUID]Account{},
		mappings:  map[string]uuid.UUID{},
		entries:   map[uuid.UUID]JournalEntry{},
		links:     map[string]uuid.UUID{},
		documents: map[uuid.UUID]uuid.UUID{},
	}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.state.clone()
	if err := fn(ctx, &memoryTx{s: &work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *memoryRepo) addAccount(code string, typ AccountType) Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := Account{ID: uuid.New(), Code: code, Name: code, Type: typ, IsActive: true}
	m.state.accounts[a.ID] = a
	return a
}

func (m *memoryRepo) addDocument() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.state.documents[id] = uuid.Nil
	return id
}

func (m *memoryRepo) entryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.entries)
}

func (m *memoryRepo) lineCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.lines)
}

type memoryTx struct {
	s *ledgerState
}

func (t *memoryTx) ListAccounts(ctx context.Context) ([]Account, error) {
	out := slices.Collect(maps.Values(t.s.accounts))
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *memoryTx) GetAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	a, ok := t.s.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (t *memoryTx) InsertAccount(ctx context.Context, account Account) error {
	for _, a := range t.s.accounts {
		if a.Code == account.Code {
			return ErrDuplicateAccount
		}
	}
	t.s.accounts[account.ID] = account
	return nil
}

func (t *memoryTx) UpdateAccount(ctx context.Context, account Account) error {
	if _, ok := t.s.accounts[account.ID]; !ok {
		return ErrAccountNotFound
	}
	t.s.accounts[account.ID] = account
	return nil
}

func (t *memoryTx) AccountHasLines(ctx context.Context, id uuid.UUID) (bool, error) {
	return slices.ContainsFunc(t.s.lines, func(l JournalLine) bool { return l.AccountID == id }), nil
}

func (t *memoryTx) GetAccountMapping(ctx context.Context, module, key string) (AccountMapping, error) {
	id, ok := t.s.mappings[strings.ToUpper(module)+"/"+key]
	if !ok {
		return AccountMapping{}, ErrMappingNotFound
	}
	return AccountMapping{Module: strings.ToUpper(module), Key: key, AccountID: id}, nil
}

func (t *memoryTx) InsertJournalEntry(ctx context.Context, entry JournalEntry) error {
	entry.Lines = nil
	t.s.entries[entry.ID] = entry
	return nil
}

func (t *memoryTx) InsertJournalLines(ctx context.Context, lines []JournalLine) error {
	t.s.lines = append(t.s.lines, lines...)
	return nil
}

func (t *memoryTx) LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID uuid.UUID) error {
	key := module + "/" + ref.String()
	if _, ok := t.s.links[key]; ok {
		return ErrAlreadyPosted
	}
	t.s.links[key] = entryID
	return nil
}

func (t *memoryTx) StampSource(ctx context.Context, module string, ref uuid.UUID, entryID uuid.UUID) error {
	if _, ok := stampTables[module]; !ok {
		return nil
	}
	posted, ok := t.s.documents[ref]
	if !ok || posted != uuid.Nil {
		return ErrAlreadyPosted
	}
	t.s.documents[ref] = entryID
	return nil
}

func (t *memoryTx) GetJournalWithLines(ctx context.Context, entryID uuid.UUID) (JournalEntry, error) {
	e, ok := t.s.entries[entryID]
	if !ok {
		return JournalEntry{}, ErrJournalNotFound
	}
	for _, l := range t.s.lines {
		if l.JournalEntryID == entryID {
			e.Lines = append(e.Lines, l)
		}
	}
	return e, nil
}

func (t *memoryTx) ListJournalEntries(ctx context.Context, filter JournalFilter) ([]JournalEntry, int, error) {
	var out []JournalEntry
	for _, e := range t.s.entries {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.SourceModule != "" && e.SourceModule != filter.SourceModule {
			continue
		}
		if filter.From != nil && e.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !e.Date.Before(*filter.To) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	start := min(filter.Offset, total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return out[start:end], total, nil
}

func (t *memoryTx) FindIntegrityIssues(ctx context.Context) ([]IntegrityIssue, error) {
	var issues []IntegrityIssue
	for _, e := range t.s.entries {
		if e.Status != JournalStatusPosted {
			continue
		}
		debit, credit := decimal.Zero, decimal.Zero
		for _, l := range t.s.lines {
			if l.JournalEntryID == e.ID {
				debit = debit.Add(decimal.NewFromFloat(l.Debit))
				credit = credit.Add(decimal.NewFromFloat(l.Credit))
			}
		}
		td, tc := decimal.NewFromFloat(e.TotalDebit), decimal.NewFromFloat(e.TotalCredit)
		if td.Equal(tc) && debit.Equal(td) && credit.Equal(tc) {
			continue
		}
		ld, _ := debit.Float64()
		lc, _ := credit.Float64()
		issues = append(issues, IntegrityIssue{EntryID: e.ID, EntryNumber: e.EntryNumber, TotalDebit: e.TotalDebit, TotalCredit: e.TotalCredit, LineDebit: ld, LineCredit: lc})
	}
	return issues, nil
}

func (t *memoryTx) AccountTotals(ctx context.Context, from, to *time.Time) ([]AccountTotal, error) {
	sums := map[uuid.UUID]*AccountTotal{}
	var order []uuid.UUID
	for _, l := range t.s.lines {
		e := t.s.entries[l.JournalEntryID]
		if e.Status != JournalStatusPosted {
			continue
		}
		if from != nil && e.Date.Before(*from) {
			continue
		}
		if to != nil && !e.Date.Before(*to) {
			continue
		}
		sum, ok := sums[l.AccountID]
		if !ok {
			sum = &AccountTotal{AccountID: l.AccountID}
			sums[l.AccountID] = sum
			order = append(order, l.AccountID)
		}
		sum.Debit += l.Debit
		sum.Credit += l.Credit
	}
	out := make([]AccountTotal, 0, len(order))
	for _, id := range order {
		out = append(out, *sums[id])
	}
	return out, nil
}

type countingMetrics struct {
	mu       sync.Mutex
	posted   map[string]int
	rejected map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{posted: map[string]int{}, rejected: map[string]int{}}
}

func (c *countingMetrics) EntryPosted(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posted[source]++
}

func (c *countingMetrics) PostingRejected(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejected[reason]++
}

type recordingAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}
