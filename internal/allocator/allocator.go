// Package allocator keeps the per-member debt list of a lending form in sync
// with the selected payer and derives the payer's remaining burden.
package allocator

import "github.com/datti/backend/internal/models"

// SelectPayer rebuilds the debt list from scratch for payerID: one zero-amount
// debt per member other than the payer, in member order. Previously entered
// amounts are discarded. An empty payerID yields no debts.
func SelectPayer(members []models.Member, payerID string) []models.Debt {
	if payerID == "" {
		return []models.Debt{}
	}

	debts := make([]models.Debt, 0, len(members))
	for _, m := range members {
		if m.UserID == payerID {
			continue
		}
		debts = append(debts, models.Debt{PaidTo: m.UserID, Amount: 0})
	}
	return debts
}

// ReconcileMembers appends a zero-amount debt for every non-payer member that
// has no entry in existing yet. Existing entries are kept as-is, including
// entries for members that are no longer in the group.
func ReconcileMembers(existing []models.Debt, members []models.Member, payerID string) []models.Debt {
	debts := make([]models.Debt, len(existing), len(existing)+len(members))
	copy(debts, existing)

	if payerID == "" {
		return debts
	}

	seen := make(map[string]struct{}, len(existing))
	for _, d := range existing {
		seen[d.PaidTo] = struct{}{}
	}

	for _, m := range members {
		if m.UserID == payerID {
			continue
		}
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		debts = append(debts, models.Debt{PaidTo: m.UserID, Amount: 0})
	}
	return debts
}

// SetDebtAmount returns a copy of debts with the entry owed by paidTo set to
// amount. Amounts are not range checked here.
func SetDebtAmount(debts []models.Debt, paidTo string, amount int64) []models.Debt {
	updated := make([]models.Debt, len(debts))
	copy(updated, debts)

	for i := range updated {
		if updated[i].PaidTo == paidTo {
			updated[i].Amount = amount
		}
	}
	return updated
}

// ComputeBurden is the part of total that the payer absorbs. It goes negative
// when the debts over-allocate the total.
func ComputeBurden(total int64, debts []models.Debt) int64 {
	burden := total
	for _, d := range debts {
		burden -= d.Amount
	}
	return burden
}

// HasDebt reports whether paidTo has an entry in debts.
func HasDebt(debts []models.Debt, paidTo string) bool {
	for _, d := range debts {
		if d.PaidTo == paidTo {
			return true
		}
	}
	return false
}
