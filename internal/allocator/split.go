package allocator

import (
	"github.com/datti/backend/internal/models"
	"github.com/shopspring/decimal"
)

// SplitEvenly shares total equally between the payer and every debtor.
// Each debtor owes floor(total / (len(debts)+1)); the payer keeps the rest.
func SplitEvenly(total int64, debts []models.Debt) []models.Debt {
	return SplitByWeight(total, "", debts, nil)
}

// SplitByWeight shares total between the payer and the debtors in proportion
// to weights keyed by user id. Missing weights count as 1 and negative weights
// as 0. Shares are rounded down to whole yen so the payer absorbs any
// remainder. If all weights are zero the debts are returned unchanged.
func SplitByWeight(total int64, payerID string, debts []models.Debt, weights map[string]decimal.Decimal) []models.Debt {
	weightOf := func(userID string) decimal.Decimal {
		w, ok := weights[userID]
		if !ok {
			return decimal.NewFromInt(1)
		}
		if w.IsNegative() {
			return decimal.Zero
		}
		return w
	}

	sum := weightOf(payerID)
	for _, d := range debts {
		sum = sum.Add(weightOf(d.PaidTo))
	}

	split := make([]models.Debt, len(debts))
	copy(split, debts)
	if sum.IsZero() {
		return split
	}

	amount := decimal.NewFromInt(total)
	for i := range split {
		share := amount.Mul(weightOf(split[i].PaidTo)).Div(sum)
		split[i].Amount = share.Floor().IntPart()
	}
	return split
}

// SplitAmong is SplitByWeight restricted to debts owed by current members.
// Debts of anyone else (members who left since the lending was recorded) keep
// their amount, and the rest of total is split between the payer and the
// current debtors.
func SplitAmong(total int64, payerID string, debts []models.Debt, weights map[string]decimal.Decimal, isMember func(userID string) bool) []models.Debt {
	var current []models.Debt
	remaining := total
	for _, d := range debts {
		if isMember(d.PaidTo) {
			current = append(current, d)
		} else {
			remaining -= d.Amount
		}
	}
	if remaining < 0 {
		remaining = 0
	}

	shared := SplitByWeight(remaining, payerID, current, weights)
	split := make([]models.Debt, len(debts))
	next := 0
	for i, d := range debts {
		if isMember(d.PaidTo) {
			split[i] = shared[next]
			next++
		} else {
			split[i] = d
		}
	}
	return split
}
