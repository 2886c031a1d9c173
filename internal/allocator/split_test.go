package allocator

import (
	"testing"

	"github.com/datti/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSplitEvenly(t *testing.T) {
	debts := SelectPayer(members("A", "B", "C"), "A")

	t.Run("divisible total", func(t *testing.T) {
		split := SplitEvenly(300, debts)

		assert.Equal(t, []models.Debt{{PaidTo: "B", Amount: 100}, {PaidTo: "C", Amount: 100}}, split)
		assert.Equal(t, int64(100), ComputeBurden(300, split))
	})

	t.Run("payer absorbs the remainder", func(t *testing.T) {
		split := SplitEvenly(1000, debts)

		assert.Equal(t, int64(333), split[0].Amount)
		assert.Equal(t, int64(333), split[1].Amount)
		assert.Equal(t, int64(334), ComputeBurden(1000, split))
	})

	t.Run("keeps payment ids", func(t *testing.T) {
		split := SplitEvenly(200, []models.Debt{{PaidTo: "B", PaymentID: "p1"}})

		assert.Equal(t, []models.Debt{{PaidTo: "B", PaymentID: "p1", Amount: 100}}, split)
	})
}

func TestSplitByWeight(t *testing.T) {
	debts := SelectPayer(members("A", "B", "C"), "A")

	t.Run("weighted shares", func(t *testing.T) {
		weights := map[string]decimal.Decimal{
			"A": decimal.NewFromInt(2),
			"B": decimal.NewFromInt(1),
			"C": decimal.NewFromInt(1),
		}

		split := SplitByWeight(400, "A", debts, weights)

		assert.Equal(t, int64(100), split[0].Amount)
		assert.Equal(t, int64(100), split[1].Amount)
		assert.Equal(t, int64(200), ComputeBurden(400, split))
	})

	t.Run("fractional weights", func(t *testing.T) {
		weights := map[string]decimal.Decimal{
			"B": decimal.RequireFromString("0.5"),
		}

		split := SplitByWeight(500, "A", debts, weights)

		assert.Equal(t, int64(100), split[0].Amount)
		assert.Equal(t, int64(200), split[1].Amount)
	})

	t.Run("negative weight counts as zero", func(t *testing.T) {
		weights := map[string]decimal.Decimal{"C": decimal.NewFromInt(-3)}

		split := SplitByWeight(300, "A", debts, weights)

		assert.Equal(t, int64(150), split[0].Amount)
		assert.Equal(t, int64(0), split[1].Amount)
	})

	t.Run("all zero weights leave debts unchanged", func(t *testing.T) {
		weights := map[string]decimal.Decimal{
			"A": decimal.Zero,
			"B": decimal.Zero,
			"C": decimal.Zero,
		}
		seeded := SetDebtAmount(debts, "B", 42)

		assert.Equal(t, seeded, SplitByWeight(300, "A", seeded, weights))
	})
}

func TestSplitAmong(t *testing.T) {
	current := func(userID string) bool { return userID != "Z" }
	debts := []models.Debt{
		{PaymentID: "p1", PaidTo: "B", Amount: 10},
		{PaymentID: "p2", PaidTo: "Z", Amount: 100},
		{PaidTo: "C"},
	}

	t.Run("departed member keeps their debt", func(t *testing.T) {
		split := SplitAmong(1000, "A", debts, nil, current)

		assert.Equal(t, []models.Debt{
			{PaymentID: "p1", PaidTo: "B", Amount: 300},
			{PaymentID: "p2", PaidTo: "Z", Amount: 100},
			{PaidTo: "C", Amount: 300},
		}, split)
		assert.Equal(t, int64(300), ComputeBurden(1000, split))
	})

	t.Run("stale debts above the total", func(t *testing.T) {
		split := SplitAmong(50, "A", debts, map[string]decimal.Decimal{"A": decimal.NewFromInt(2)}, current)

		assert.Equal(t, int64(0), split[0].Amount)
		assert.Equal(t, int64(100), split[1].Amount)
		assert.Equal(t, int64(0), split[2].Amount)
	})

	t.Run("everyone current matches SplitByWeight", func(t *testing.T) {
		all := func(string) bool { return true }
		assert.Equal(t, SplitEvenly(1000, debts), SplitAmong(1000, "", debts, nil, all))
	})
}
