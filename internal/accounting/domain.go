// Package accounting owns the chart of accounts and the double-entry journal.
// Every entry is validated to balance before anything is written.
package accounting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oomaallah/hotelops/internal/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusDraft  JournalStatus = "draft"
	JournalStatusPosted JournalStatus = "posted"
)

// Source modules that may own a journal entry.
const (
	SourceManual       = "MANUAL"
	SourcePOSBill      = "POS.BILL"
	SourceStockRequest = "STOCK.REQUEST"
	SourceReversal     = "REVERSAL"
)

// Account models a chart of accounts node.
type Account struct {
	ID        uuid.UUID   `json:"id"`
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
	ParentID  *uuid.UUID  `json:"parent_id,omitempty"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// JournalEntry captures posting metadata. Posted entries are never edited;
// corrections are reversing entries.
type JournalEntry struct {
	ID           uuid.UUID     `json:"id"`
	EntryNumber  string        `json:"entry_number"`
	Date         time.Time     `json:"entry_date"`
	Description  string        `json:"description"`
	Reference    *string       `json:"reference,omitempty"`
	SourceModule string        `json:"source_module"`
	SourceID     uuid.UUID     `json:"source_id"`
	TotalDebit   float64       `json:"total_debit"`
	TotalCredit  float64       `json:"total_credit"`
	Status       JournalStatus `json:"status"`
	CreatedBy    uuid.UUID     `json:"created_by"`
	PostedAt     *time.Time    `json:"posted_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	Lines        []JournalLine `json:"lines,omitempty"`
}

// JournalLine stores a debit or credit amount for an account.
type JournalLine struct {
	ID             uuid.UUID `json:"id"`
	JournalEntryID uuid.UUID `json:"journal_entry_id"`
	AccountID      uuid.UUID `json:"account_id"`
	Debit          float64   `json:"debit"`
	Credit         float64   `json:"credit"`
	Description    string    `json:"description,omitempty"`
}

// AccountMapping links integration keys to ledger accounts.
type AccountMapping struct {
	Module    string    `json:"module"`
	Key       string    `json:"key"`
	AccountID uuid.UUID `json:"account_id"`
}

// PostingLineInput describes a journal line for a posting request.
type PostingLineInput struct {
	AccountID   uuid.UUID
	Debit       float64
	Credit      float64
	Description string
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	Date         time.Time
	Description  string
	Reference    *string
	SourceModule string
	SourceID     uuid.UUID
	CreatedBy    uuid.UUID
	Lines        []PostingLineInput
}

// ManualEntryInput is a line set keyed by accounting staff.
type ManualEntryInput struct {
	Date        time.Time
	Description string
	Reference   *string
	CreatedBy   uuid.UUID
	Lines       []PostingLineInput
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	EntryID     uuid.UUID
	ActorID     uuid.UUID
	Description string
	Date        *time.Time
}

// JournalFilter narrows journal listings.
type JournalFilter struct {
	From         *time.Time
	To           *time.Time
	Status       JournalStatus
	SourceModule string
	Limit        int
	Offset       int
}

// AccountInput creates an account.
type AccountInput struct {
	Code     string
	Name     string
	Type     AccountType
	ParentID *uuid.UUID
}

// AccountUpdate changes mutable account fields. Nil fields are left as is.
type AccountUpdate struct {
	Name     *string
	Type     *AccountType
	IsActive *bool
}

// IntegrityIssue describes a posted entry that breaks the balance invariant.
type IntegrityIssue struct {
	EntryID     uuid.UUID `json:"entry_id"`
	EntryNumber string    `json:"entry_number"`
	TotalDebit  float64   `json:"total_debit"`
	TotalCredit float64   `json:"total_credit"`
	LineDebit   float64   `json:"line_debit"`
	LineCredit  float64   `json:"line_credit"`
}

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = shared.NewError(shared.ErrValidation, "unbalanced entry")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = shared.NewError(shared.ErrValidation, "journal requires at least two lines")
	// ErrAlreadyPosted indicates the source document already carries an entry.
	ErrAlreadyPosted = shared.NewError(shared.ErrConflict, "already posted")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = shared.NewError(shared.ErrNotFound, "journal entry not found")
	// ErrAccountNotFound indicates a line references an unknown account.
	ErrAccountNotFound = shared.NewError(shared.ErrNotFound, "account not found")
	// ErrAccountInactive indicates a line references a deactivated account.
	ErrAccountInactive = shared.NewError(shared.ErrValidation, "account is inactive")
	// ErrDuplicateAccount indicates the account code is taken.
	ErrDuplicateAccount = shared.NewError(shared.ErrConflict, "account code already exists")
	// ErrAccountInUse blocks a type change on an account with journal lines.
	ErrAccountInUse = shared.NewError(shared.ErrPrecondition, "account type cannot change once lines reference it")
	// ErrAlreadyReversed indicates the entry already has a reversing entry.
	ErrAlreadyReversed = shared.NewError(shared.ErrConflict, "journal entry already reversed")
	// ErrNotPosted blocks reversal of draft entries.
	ErrNotPosted = shared.NewError(shared.ErrPrecondition, "journal entry is not posted")
	// ErrMappingNotFound indicates account mapping missing.
	ErrMappingNotFound = shared.NewError(shared.ErrPrecondition, "account mapping not configured")
)

// Totals validates the posting and returns its debit and credit totals, each
// rounded to 2 dp.
func (in PostingInput) Totals() (decimal.Decimal, decimal.Decimal, error) {
	if len(in.Lines) < 2 {
		return decimal.Zero, decimal.Zero, ErrTooFewLines
	}
	debit, credit := decimal.Zero, decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountID == uuid.Nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("%w: line %d missing account", shared.ErrValidation, idx+1)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return decimal.Zero, decimal.Zero, fmt.Errorf("%w: line %d negative amount", shared.ErrValidation, idx+1)
		}
		d := decimal.NewFromFloat(line.Debit).Round(2)
		c := decimal.NewFromFloat(line.Credit).Round(2)
		if d.IsZero() == c.IsZero() {
			return decimal.Zero, decimal.Zero, fmt.Errorf("%w: line %d must have exactly one of debit or credit", shared.ErrValidation, idx+1)
		}
		debit = debit.Add(d)
		credit = credit.Add(c)
	}
	if !debit.Equal(credit) || !debit.IsPositive() {
		return decimal.Zero, decimal.Zero, ErrUnbalanced
	}
	return debit, credit, nil
}

// Validate ensures posting input meets minimum criteria.
func (in PostingInput) Validate() error {
	if _, _, err := in.Totals(); err != nil {
		return err
	}
	if in.SourceModule == "" {
		return fmt.Errorf("%w: source module required", shared.ErrValidation)
	}
	if in.SourceID == uuid.Nil {
		return fmt.Errorf("%w: source id required", shared.ErrValidation)
	}
	if in.CreatedBy == uuid.Nil {
		return fmt.Errorf("%w: acting user required", shared.ErrValidation)
	}
	if in.Description == "" {
		return fmt.Errorf("%w: description required", shared.ErrValidation)
	}
	return nil
}
