package accounting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"

	"github.com/oomaallah/hotelops/internal/charges"
	"github.com/oomaallah/hotelops/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Metrics counts ledger outcomes.
type Metrics interface {
	EntryPosted(source string)
	PostingRejected(reason string)
}

// Service coordinates posting and reversing journal entries and maintains the
// chart of accounts.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	ids     *snowflake.Node
	metrics Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs the ledger service. node numbers journal entries; a
// nil node falls back to node 0.
func NewService(repo RepositoryPort, audit AuditPort, node *snowflake.Node, logger *slog.Logger) *Service {
	if node == nil {
		node, _ = snowflake.NewNode(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, ids: node, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithMetrics attaches ledger counters.
func (s *Service) WithMetrics(m Metrics) {
	s.metrics = m
}

// PostJournal validates and persists a new journal entry. An invalid entry is
// rejected before anything is written. For bill and stock request sources the
// document is stamped with the entry id in the same transaction, so a second
// posting of the same document fails with ErrAlreadyPosted.
func (s *Service) PostJournal(ctx context.Context, input PostingInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		s.rejected(rejectReason(err))
		return JournalEntry{}, err
	}
	debit, credit, _ := input.Totals()
	now := s.now()
	date := input.Date
	if date.IsZero() {
		date = now
	}
	entry := JournalEntry{
		ID:           uuid.New(),
		EntryNumber:  s.nextNumber(),
		Date:         entryDate(date),
		Description:  input.Description,
		Reference:    input.Reference,
		SourceModule: input.SourceModule,
		SourceID:     input.SourceID,
		TotalDebit:   charges.Float(debit),
		TotalCredit:  charges.Float(credit),
		Status:       JournalStatusPosted,
		CreatedBy:    input.CreatedBy,
		PostedAt:     &now,
		CreatedAt:    now,
	}
	entry.Lines = make([]JournalLine, 0, len(input.Lines))
	for _, l := range input.Lines {
		entry.Lines = append(entry.Lines, JournalLine{
			ID:             uuid.New(),
			JournalEntryID: entry.ID,
			AccountID:      l.AccountID,
			Debit:          charges.Round2(l.Debit),
			Credit:         charges.Round2(l.Credit),
			Description:    l.Description,
		})
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		checked := make(map[uuid.UUID]bool, len(entry.Lines))
		for _, l := range entry.Lines {
			if checked[l.AccountID] {
				continue
			}
			account, err := tx.GetAccount(ctx, l.AccountID)
			if err != nil {
				return err
			}
			if !account.IsActive {
				return fmt.Errorf("%w: %s", ErrAccountInactive, account.Code)
			}
			checked[l.AccountID] = true
		}
		if err := tx.InsertJournalEntry(ctx, entry); err != nil {
			return err
		}
		if err := tx.InsertJournalLines(ctx, entry.Lines); err != nil {
			return err
		}
		if err := tx.LinkSource(ctx, entry.SourceModule, entry.SourceID, entry.ID); err != nil {
			return err
		}
		return tx.StampSource(ctx, entry.SourceModule, entry.SourceID, entry.ID)
	})
	if err != nil {
		s.rejected(rejectReason(err))
		return JournalEntry{}, err
	}
	if s.metrics != nil {
		s.metrics.EntryPosted(entry.SourceModule)
	}
	s.record(ctx, input.CreatedBy, "journal.post", "journal_entry", entry.ID, map[string]any{
		"number":        entry.EntryNumber,
		"source_module": entry.SourceModule,
		"source_id":     entry.SourceID.String(),
		"total":         entry.TotalDebit,
	})
	return entry, nil
}

// PostManual posts a line set keyed by accounting staff. It is validated like
// any other posting regardless of what the client checked.
func (s *Service) PostManual(ctx context.Context, input ManualEntryInput) (JournalEntry, error) {
	return s.PostJournal(ctx, PostingInput{
		Date:         input.Date,
		Description:  input.Description,
		Reference:    input.Reference,
		SourceModule: SourceManual,
		SourceID:     uuid.New(),
		CreatedBy:    input.CreatedBy,
		Lines:        input.Lines,
	})
}

// ReverseJournal posts a mirror entry for a posted entry. The original is left
// untouched and can be reversed only once.
func (s *Service) ReverseJournal(ctx context.Context, input ReverseInput) (JournalEntry, error) {
	if input.EntryID == uuid.Nil {
		return JournalEntry{}, fmt.Errorf("%w: entry id required", shared.ErrValidation)
	}
	original, err := s.GetJournal(ctx, input.EntryID)
	if err != nil {
		return JournalEntry{}, err
	}
	if original.Status != JournalStatusPosted {
		return JournalEntry{}, ErrNotPosted
	}
	posting := PostingInput{
		Date:         s.now(),
		Description:  defaultReversalMemo(input.Description, original.EntryNumber),
		Reference:    &original.EntryNumber,
		SourceModule: SourceReversal,
		SourceID:     original.ID,
		CreatedBy:    input.ActorID,
		Lines:        reverseLines(original.Lines),
	}
	if input.Date != nil {
		posting.Date = *input.Date
	}
	reversal, err := s.PostJournal(ctx, posting)
	if errors.Is(err, ErrAlreadyPosted) {
		return JournalEntry{}, ErrAlreadyReversed
	}
	return reversal, err
}

func reverseLines(lines []JournalLine) []PostingLineInput {
	out := make([]PostingLineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, PostingLineInput{
			AccountID:   line.AccountID,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: line.Description,
		})
	}
	return out
}

func defaultReversalMemo(memo, number string) string {
	if memo != "" {
		return memo
	}
	return "Reversal of " + number
}

func (s *Service) nextNumber() string {
	return "JE-" + s.ids.Generate().String()
}

func (s *Service) rejected(reason string) {
	if s.metrics != nil {
		s.metrics.PostingRejected(reason)
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrUnbalanced):
		return "unbalanced"
	case errors.Is(err, ErrAlreadyPosted):
		return "already_posted"
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, ErrAccountInactive):
		return "account"
	case errors.Is(err, shared.ErrValidation):
		return "invalid"
	case errors.Is(err, shared.ErrConflict):
		return "conflict"
	}
	return "error"
}

func (s *Service) record(ctx context.Context, actor uuid.UUID, action, entity string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   entity,
		EntityID: id.String(),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

// GetJournal returns an entry with its lines.
func (s *Service) GetJournal(ctx context.Context, id uuid.UUID) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.GetJournalWithLines(ctx, id)
		return err
	})
	return entry, err
}

// ListJournalEntries returns a page of entries and the total match count.
func (s *Service) ListJournalEntries(ctx context.Context, filter JournalFilter) ([]JournalEntry, int, error) {
	var (
		entries []JournalEntry
		total   int
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entries, total, err = tx.ListJournalEntries(ctx, filter)
		return err
	})
	return entries, total, err
}

// ListAccounts retrieves all chart of accounts entries.
func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		accounts, err = tx.ListAccounts(ctx)
		return err
	})
	return accounts, err
}

// CreateAccount adds a chart of accounts node.
func (s *Service) CreateAccount(ctx context.Context, input AccountInput, actor uuid.UUID) (Account, error) {
	code := strings.TrimSpace(input.Code)
	name := strings.TrimSpace(input.Name)
	if code == "" || name == "" {
		return Account{}, fmt.Errorf("%w: account code and name required", shared.ErrValidation)
	}
	if !input.Type.Valid() {
		return Account{}, fmt.Errorf("%w: unknown account type %q", shared.ErrValidation, input.Type)
	}
	now := s.now()
	account := Account{
		ID:        uuid.New(),
		Code:      code,
		Name:      name,
		Type:      input.Type,
		ParentID:  input.ParentID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if account.ParentID != nil {
			if _, err := tx.GetAccount(ctx, *account.ParentID); err != nil {
				return err
			}
		}
		return tx.InsertAccount(ctx, account)
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, actor, "account.create", "account", account.ID, map[string]any{"code": account.Code})
	return account, nil
}

// UpdateAccount renames, retypes or (de)activates an account. The type is
// frozen once any journal line references the account.
func (s *Service) UpdateAccount(ctx context.Context, id uuid.UUID, update AccountUpdate, actor uuid.UUID) (Account, error) {
	if update.Type != nil && !update.Type.Valid() {
		return Account{}, fmt.Errorf("%w: unknown account type %q", shared.ErrValidation, *update.Type)
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return Account{}, fmt.Errorf("%w: account name required", shared.ErrValidation)
	}
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, err = tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if update.Type != nil && *update.Type != account.Type {
			used, err := tx.AccountHasLines(ctx, id)
			if err != nil {
				return err
			}
			if used {
				return ErrAccountInUse
			}
			account.Type = *update.Type
		}
		if update.Name != nil {
			account.Name = strings.TrimSpace(*update.Name)
		}
		if update.IsActive != nil {
			account.IsActive = *update.IsActive
		}
		account.UpdatedAt = s.now()
		return tx.UpdateAccount(ctx, account)
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, actor, "account.update", "account", account.ID, map[string]any{"code": account.Code})
	return account, nil
}

// ResolveMappings looks up the accounts configured for module keys. Every key
// must be mapped.
func (s *Service) ResolveMappings(ctx context.Context, module string, keys ...string) (map[string]uuid.UUID, error) {
	out := make(map[string]uuid.UUID, len(keys))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, key := range keys {
			m, err := tx.GetAccountMapping(ctx, module, key)
			if err != nil {
				return err
			}
			out[key] = m.AccountID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CheckIntegrity reports posted entries whose lines do not sum to their totals.
func (s *Service) CheckIntegrity(ctx context.Context) ([]IntegrityIssue, error) {
	var issues []IntegrityIssue
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		issues, err = tx.FindIntegrityIssues(ctx)
		return err
	})
	return issues, err
}
