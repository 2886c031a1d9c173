package allocator

import "github.com/datti/backend/internal/models"

type State int

const (
	NoPayerSelected State = iota
	PayerSelected
)

func (s State) String() string {
	return [...]string{"NoPayerSelected", "PayerSelected"}[s]
}

// Allocator holds the debt list of a single form session.
// It is not safe for concurrent use; each form owns its own instance.
type Allocator struct {
	members []models.Member
	payerID string
	debts   []models.Debt
}

// New returns an allocator for members with no payer selected.
func New(members []models.Member) *Allocator {
	return &Allocator{
		members: append([]models.Member(nil), members...),
		debts:   []models.Debt{},
	}
}

// Restore rebuilds an allocator from previously stored state, e.g. an edit
// form seeded from the server. Missing members are reconciled in.
func Restore(members []models.Member, payerID string, debts []models.Debt) *Allocator {
	a := New(members)
	a.payerID = payerID
	if payerID != "" {
		a.debts = ReconcileMembers(debts, a.members, payerID)
	}
	return a
}

func (a *Allocator) State() State {
	if a.payerID == "" {
		return NoPayerSelected
	}
	return PayerSelected
}

func (a *Allocator) PayerID() string {
	return a.payerID
}

func (a *Allocator) Members() []models.Member {
	return append([]models.Member(nil), a.members...)
}

// Debts returns a copy of the current debt list.
func (a *Allocator) Debts() []models.Debt {
	return append([]models.Debt{}, a.debts...)
}

// SelectPayer moves to PayerSelected (or back to NoPayerSelected for an empty
// id), replacing every debt in one step.
func (a *Allocator) SelectPayer(payerID string) {
	a.payerID = payerID
	a.debts = SelectPayer(a.members, payerID)
}

// SetDebtAmount updates one debt. It is a no-op while no payer is selected
// and reports whether an entry was found.
func (a *Allocator) SetDebtAmount(paidTo string, amount int64) bool {
	if a.State() == NoPayerSelected || !HasDebt(a.debts, paidTo) {
		return false
	}
	a.debts = SetDebtAmount(a.debts, paidTo, amount)
	return true
}

// ReplaceDebts swaps the amounts wholesale, e.g. after a split.
func (a *Allocator) ReplaceDebts(debts []models.Debt) {
	a.debts = append([]models.Debt{}, debts...)
}

func (a *Allocator) Burden(total int64) int64 {
	return ComputeBurden(total, a.debts)
}
