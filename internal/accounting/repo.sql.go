package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oomaallah/hotelops/internal/platform/db"
	"github.com/oomaallah/hotelops/internal/shared"
)

// Repository persists accounting entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (Account, error)
	InsertAccount(ctx context.Context, account Account) error
	UpdateAccount(ctx context.Context, account Account) error
	AccountHasLines(ctx context.Context, id uuid.UUID) (bool, error)
	GetAccountMapping(ctx context.Context, module, key string) (AccountMapping, error)

	InsertJournalEntry(ctx context.Context, entry JournalEntry) error
	InsertJournalLines(ctx context.Context, lines []JournalLine) error
	LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID uuid.UUID) error
	StampSource(ctx context.Context, module string, ref uuid.UUID, entryID uuid.UUID) error
	GetJournalWithLines(ctx context.Context, entryID uuid.UUID) (JournalEntry, error)
	ListJournalEntries(ctx context.Context, filter JournalFilter) ([]JournalEntry, int, error)
	FindIntegrityIssues(ctx context.Context) ([]IntegrityIssue, error)
	AccountTotals(ctx context.Context, from, to *time.Time) ([]AccountTotal, error)
}

type txRepository struct {
	tx pgx.Tx
}

// stampTables names the documents that carry posted_journal_entry_id.
var stampTables = map[string]string{
	SourcePOSBill:      "pos_bills",
	SourceStockRequest: "stock_requests",
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("accounting repository not initialised")
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	if err != nil && db.IsSerializationFailure(err) {
		return fmt.Errorf("%w: concurrent ledger update, retry the request", shared.ErrConflict)
	}
	return err
}

const accountColumns = `id, code, name, type, parent_id, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var typ string
	if err := row.Scan(&a.ID, &a.Code, &a.Name, &typ, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	a.Type = AccountType(typ)
	return a, nil
}

func (r *txRepository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *txRepository) GetAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

func (r *txRepository) InsertAccount(ctx context.Context, a Account) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO accounts (id, code, name, type, parent_id, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, a.ID, a.Code, a.Name, string(a.Type), a.ParentID, a.IsActive, a.CreatedAt, a.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateAccount
	}
	return err
}

func (r *txRepository) UpdateAccount(ctx context.Context, a Account) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET name=$2, type=$3, is_active=$4, updated_at=$5 WHERE id=$1`,
		a.ID, a.Name, string(a.Type), a.IsActive, a.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) AccountHasLines(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_lines WHERE account_id=$1)`, id).Scan(&exists)
	return exists, err
}

// GetAccountMapping resolves an account mapping for the specified key.
func (r *txRepository) GetAccountMapping(ctx context.Context, module, key string) (AccountMapping, error) {
	if module == "" || key == "" {
		return AccountMapping{}, fmt.Errorf("%w: mapping module and key required", shared.ErrValidation)
	}
	mapping := AccountMapping{Module: strings.ToUpper(module), Key: key}
	err := r.tx.QueryRow(ctx, `SELECT account_id FROM account_mappings WHERE module=$1 AND key=$2`, mapping.Module, key).
		Scan(&mapping.AccountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountMapping{}, fmt.Errorf("%w: %s/%s", ErrMappingNotFound, mapping.Module, key)
		}
		return AccountMapping{}, err
	}
	return mapping, nil
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, e JournalEntry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO journal_entries (id, entry_number, entry_date, description, reference, source_module, source_id,
total_debit, total_credit, status, created_by, posted_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		e.ID, e.EntryNumber, e.Date, e.Description, e.Reference, e.SourceModule, e.SourceID,
		e.TotalDebit, e.TotalCredit, string(e.Status), e.CreatedBy, e.PostedAt, e.CreatedAt)
	return err
}

func (r *txRepository) InsertJournalLines(ctx context.Context, lines []JournalLine) error {
	batch := &pgx.Batch{}
	for _, line := range lines {
		batch.Queue(`INSERT INTO journal_lines (id, journal_entry_id, account_id, debit, credit, description)
VALUES ($1,$2,$3,$4,$5,$6)`, line.ID, line.JournalEntryID, line.AccountID, line.Debit, line.Credit, line.Description)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (module, ref_id, journal_entry_id) VALUES ($1,$2,$3)`, module, ref, entryID)
	if db.IsUniqueViolation(err, "uq_source_links_module_ref") {
		return ErrAlreadyPosted
	}
	return err
}

// StampSource compare-and-sets posted_journal_entry_id on the source document.
// Modules without such a column are ignored.
func (r *txRepository) StampSource(ctx context.Context, module string, ref uuid.UUID, entryID uuid.UUID) error {
	table, ok := stampTables[module]
	if !ok {
		return nil
	}
	cmd, err := r.tx.Exec(ctx, `UPDATE `+table+` SET posted_journal_entry_id=$2, updated_at=NOW()
WHERE id=$1 AND posted_journal_entry_id IS NULL`, ref, entryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyPosted
	}
	return nil
}

const entryColumns = `id, entry_number, entry_date, description, reference, source_module, source_id,
total_debit, total_credit, status, created_by, posted_at, created_at`

func scanEntry(row pgx.Row, extra ...any) (JournalEntry, error) {
	var e JournalEntry
	var status string
	dest := []any{&e.ID, &e.EntryNumber, &e.Date, &e.Description, &e.Reference, &e.SourceModule, &e.SourceID,
		&e.TotalDebit, &e.TotalCredit, &status, &e.CreatedBy, &e.PostedAt, &e.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	e.Status = JournalStatus(status)
	return e, nil
}

func (r *txRepository) GetJournalWithLines(ctx context.Context, entryID uuid.UUID) (JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, entryID))
	if err != nil {
		return JournalEntry{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, journal_entry_id, account_id, debit, credit, COALESCE(description, '')
FROM journal_lines WHERE journal_entry_id=$1 ORDER BY debit DESC, id`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.JournalEntryID, &line.AccountID, &line.Debit, &line.Credit, &line.Description); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) ListJournalEntries(ctx context.Context, filter JournalFilter) ([]JournalEntry, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.From != nil {
		add("entry_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("entry_date < $%d", *filter.To)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.SourceModule != "" {
		add("source_module = $%d", filter.SourceModule)
	}
	sql := `SELECT ` + entryColumns + `, COUNT(*) OVER() FROM journal_entries`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	args = append(args, limit, max(filter.Offset, 0))
	sql += fmt.Sprintf(` ORDER BY entry_date DESC, created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		entries []JournalEntry
		total   int
	)
	for rows.Next() {
		e, err := scanEntry(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (r *txRepository) FindIntegrityIssues(ctx context.Context) ([]IntegrityIssue, error) {
	rows, err := r.tx.Query(ctx, `SELECT e.id, e.entry_number, e.total_debit, e.total_credit,
       COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_entries e
LEFT JOIN journal_lines l ON l.journal_entry_id = e.id
WHERE e.status = 'posted'
GROUP BY e.id, e.entry_number, e.total_debit, e.total_credit
HAVING e.total_debit <> e.total_credit
    OR COALESCE(SUM(l.debit), 0) <> e.total_debit
    OR COALESCE(SUM(l.credit), 0) <> e.total_credit
ORDER BY e.entry_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var issues []IntegrityIssue
	for rows.Next() {
		var is IntegrityIssue
		if err := rows.Scan(&is.EntryID, &is.EntryNumber, &is.TotalDebit, &is.TotalCredit, &is.LineDebit, &is.LineCredit); err != nil {
			return nil, err
		}
		issues = append(issues, is)
	}
	return issues, rows.Err()
}

// entryDate truncates a timestamp to the calendar day stored in entry_date.
func entryDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (r *txRepository) AccountTotals(ctx context.Context, from, to *time.Time) ([]AccountTotal, error) {
	rows, err := r.tx.Query(ctx, `SELECT l.account_id, COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.journal_entry_id
WHERE e.status = 'posted'
  AND ($1::date IS NULL OR e.entry_date >= $1)
  AND ($2::date IS NULL OR e.entry_date < $2)
GROUP BY l.account_id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountTotal
	for rows.Next() {
		var t AccountTotal
		if err := rows.Scan(&t.AccountID, &t.Debit, &t.Credit); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
