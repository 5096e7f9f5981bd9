package integration

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oomaallah/hotelops/internal/accounting"
)

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// side collects journal lines for one side of an entry, dropping zero amounts.
type side struct {
	debit bool
	lines []mappedLine
}

type mappedLine struct {
	key    string
	amount decimal.Decimal
	memo   string
}

func (s *side) add(key string, amount decimal.Decimal, memo string) {
	if amount.IsZero() {
		return
	}
	s.lines = append(s.lines, mappedLine{key: key, amount: amount, memo: memo})
}

func (s *side) keys() []string {
	out := make([]string, 0, len(s.lines))
	for _, l := range s.lines {
		out = append(out, l.key)
	}
	return out
}

func (s *side) postingLines(accounts map[string]uuid.UUID) []accounting.PostingLineInput {
	out := make([]accounting.PostingLineInput, 0, len(s.lines))
	for _, l := range s.lines {
		line := accounting.PostingLineInput{AccountID: accounts[l.key], Description: l.memo}
		if s.debit {
			line.Debit = l.amount.InexactFloat64()
		} else {
			line.Credit = l.amount.InexactFloat64()
		}
		out = append(out, line)
	}
	return out
}
