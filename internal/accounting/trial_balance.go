package accounting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oomaallah/hotelops/internal/shared"
)

// AccountTotal is the debit and credit sum of posted lines on one account.
type AccountTotal struct {
	AccountID uuid.UUID
	Debit     float64
	Credit    float64
}

// TrialBalanceRow is one account of a trial balance. Closing is debit-normal:
// opening + debit - credit.
type TrialBalanceRow struct {
	AccountID uuid.UUID `json:"account_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Opening   float64   `json:"opening"`
	Debit     float64   `json:"debit"`
	Credit    float64   `json:"credit"`
	Closing   float64   `json:"closing"`
}

// TrialBalanceGroup aggregates the rows of one account type.
type TrialBalanceGroup struct {
	Type     AccountType       `json:"type"`
	Accounts []TrialBalanceRow `json:"accounts"`
	Opening  float64           `json:"opening"`
	Debit    float64           `json:"debit"`
	Credit   float64           `json:"credit"`
	Closing  float64           `json:"closing"`
}

// TrialBalance lists activity per account for entries dated in [From, To).
type TrialBalance struct {
	From        *time.Time          `json:"from,omitempty"`
	To          *time.Time          `json:"to,omitempty"`
	Groups      []TrialBalanceGroup `json:"groups"`
	TotalDebit  float64             `json:"total_debit"`
	TotalCredit float64             `json:"total_credit"`
	Balanced    bool                `json:"balanced"`
}

var typeOrder = []AccountType{
	AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense,
}

// TrialBalance sums posted lines per account. Everything dated before from is
// folded into the opening column. Nil bounds are open.
func (s *Service) TrialBalance(ctx context.Context, from, to *time.Time) (TrialBalance, error) {
	if from != nil && to != nil && !from.Before(*to) {
		return TrialBalance{}, fmt.Errorf("%w: from must be before to", shared.ErrValidation)
	}
	var (
		accounts []Account
		opening  []AccountTotal
		period   []AccountTotal
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if accounts, err = tx.ListAccounts(ctx); err != nil {
			return err
		}
		if from != nil {
			if opening, err = tx.AccountTotals(ctx, nil, from); err != nil {
				return err
			}
		}
		period, err = tx.AccountTotals(ctx, from, to)
		return err
	})
	if err != nil {
		return TrialBalance{}, err
	}
	tb := buildTrialBalance(accounts, opening, period)
	tb.From, tb.To = from, to
	return tb, nil
}

type balance struct {
	opening, debit, credit decimal.Decimal
}

func buildTrialBalance(accounts []Account, opening, period []AccountTotal) TrialBalance {
	sums := make(map[uuid.UUID]*balance)
	get := func(id uuid.UUID) *balance {
		b, ok := sums[id]
		if !ok {
			b = &balance{}
			sums[id] = b
		}
		return b
	}
	for _, t := range opening {
		b := get(t.AccountID)
		b.opening = b.opening.Add(decimal.NewFromFloat(t.Debit)).Sub(decimal.NewFromFloat(t.Credit))
	}
	for _, t := range period {
		b := get(t.AccountID)
		b.debit = b.debit.Add(decimal.NewFromFloat(t.Debit))
		b.credit = b.credit.Add(decimal.NewFromFloat(t.Credit))
	}

	byType := make(map[AccountType][]Account)
	for _, a := range accounts {
		if _, ok := sums[a.ID]; ok {
			byType[a.Type] = append(byType[a.Type], a)
		}
	}

	tb := TrialBalance{Groups: []TrialBalanceGroup{}}
	var totalDebit, totalCredit decimal.Decimal
	for _, typ := range typeOrder {
		members := byType[typ]
		if len(members) == 0 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].Code < members[j].Code })
		grp := TrialBalanceGroup{Type: typ}
		var gOpen, gDebit, gCredit decimal.Decimal
		for _, a := range members {
			b := sums[a.ID]
			closing := b.opening.Add(b.debit).Sub(b.credit)
			grp.Accounts = append(grp.Accounts, TrialBalanceRow{
				AccountID: a.ID,
				Code:      a.Code,
				Name:      a.Name,
				Opening:   b.opening.Round(2).InexactFloat64(),
				Debit:     b.debit.Round(2).InexactFloat64(),
				Credit:    b.credit.Round(2).InexactFloat64(),
				Closing:   closing.Round(2).InexactFloat64(),
			})
			gOpen = gOpen.Add(b.opening)
			gDebit = gDebit.Add(b.debit)
			gCredit = gCredit.Add(b.credit)
		}
		grp.Opening = gOpen.Round(2).InexactFloat64()
		grp.Debit = gDebit.Round(2).InexactFloat64()
		grp.Credit = gCredit.Round(2).InexactFloat64()
		grp.Closing = gOpen.Add(gDebit).Sub(gCredit).Round(2).InexactFloat64()
		tb.Groups = append(tb.Groups, grp)
		totalDebit = totalDebit.Add(gDebit)
		totalCredit = totalCredit.Add(gCredit)
	}
	tb.TotalDebit = totalDebit.Round(2).InexactFloat64()
	tb.TotalCredit = totalCredit.Round(2).InexactFloat64()
	tb.Balanced = totalDebit.Round(2).Equal(totalCredit.Round(2))
	return tb
}
