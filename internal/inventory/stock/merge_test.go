package stock_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/stock"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func existingBatch() *domain.Batch {
	return &domain.Batch{
		ID:                "batch-1",
		MedicineName:      "Panadol",
		BatchNumber:       "PN-100",
		Quantity:          100,
		SellingPrice:      money("15.00"),
		PurchasePrice:     money("10.00"),
		ExpiryDate:        datePtr(2027, 6, 1),
		ManufacturingDate: date(2025, 6, 1),
	}
}

func incomingStock() domain.IncomingStock {
	return domain.IncomingStock{
		Quantity:          50,
		SellingPrice:      money("18.00"),
		PurchasePrice:     money("16.00"),
		ExpiryDate:        datePtr(2027, 6, 10),
		ManufacturingDate: date(2026, 1, 1),
	}
}

func TestComputeMerge_WeightedAveragePurchasePrice(t *testing.T) {
	today := date(2026, 3, 1)

	plan, err := stock.ComputeMerge(existingBatch(), incomingStock(), today)
	require.NoError(t, err)

	// (100*10.00 + 50*16.00) / 150 = 12.00
	assert.Equal(t, 100, plan.PreviousQuantity)
	assert.Equal(t, 50, plan.AddedQuantity)
	assert.Equal(t, 150, plan.NewTotalQuantity)
	assert.True(t, plan.NewPurchasePrice.Equal(money("12.00")),
		"got %s", plan.NewPurchasePrice)
}

func TestComputeMerge_SellingPriceReplaced(t *testing.T) {
	today := date(2026, 3, 1)

	plan, err := stock.ComputeMerge(existingBatch(), incomingStock(), today)
	require.NoError(t, err)

	assert.True(t, plan.NewSellingPrice.Equal(money("18.00")))
	assert.True(t, plan.PreviousSelling.Equal(money("15.00")))
}

func TestComputeMerge_RoundsHalfUpToCents(t *testing.T) {
	today := date(2026, 3, 1)

	existing := existingBatch()
	existing.Quantity = 3
	existing.PurchasePrice = money("10.00")

	incoming := incomingStock()
	incoming.Quantity = 3
	incoming.PurchasePrice = money("10.01")

	// (30.00 + 30.03) / 6 = 10.005 -> 10.01
	plan, err := stock.ComputeMerge(existing, incoming, today)
	require.NoError(t, err)
	assert.True(t, plan.NewPurchasePrice.Equal(money("10.01")),
		"got %s", plan.NewPurchasePrice)
}

func TestComputeMerge_LaterDatesWin(t *testing.T) {
	today := date(2026, 3, 1)

	t.Run("incoming expiry later", func(t *testing.T) {
		plan, err := stock.ComputeMerge(existingBatch(), incomingStock(), today)
		require.NoError(t, err)
		require.NotNil(t, plan.ExpiryDate)
		assert.True(t, plan.ExpiryDate.Equal(date(2027, 6, 10)))
		assert.True(t, plan.ManufacturingDate.Equal(date(2026, 1, 1)))
	})

	t.Run("existing expiry later", func(t *testing.T) {
		incoming := incomingStock()
		incoming.ExpiryDate = datePtr(2027, 5, 1)
		incoming.ManufacturingDate = date(2024, 1, 1)

		plan, err := stock.ComputeMerge(existingBatch(), incoming, today)
		require.NoError(t, err)
		require.NotNil(t, plan.ExpiryDate)
		assert.True(t, plan.ExpiryDate.Equal(date(2027, 6, 1)))
		assert.True(t, plan.ManufacturingDate.Equal(date(2025, 6, 1)))
	})

	t.Run("absent dates", func(t *testing.T) {
		existing := existingBatch()
		existing.ExpiryDate = nil
		incoming := incomingStock()
		incoming.ExpiryDate = nil
		incoming.ManufacturingDate = time.Time{}

		plan, err := stock.ComputeMerge(existing, incoming, today)
		require.NoError(t, err)
		assert.Nil(t, plan.ExpiryDate)
		assert.True(t, plan.ManufacturingDate.Equal(existing.ManufacturingDate))
	})

	t.Run("one-sided expiry is kept", func(t *testing.T) {
		incoming := incomingStock()
		incoming.ExpiryDate = nil

		plan, err := stock.ComputeMerge(existingBatch(), incoming, today)
		require.NoError(t, err)
		require.NotNil(t, plan.ExpiryDate)
		assert.True(t, plan.ExpiryDate.Equal(date(2027, 6, 1)))
	})
}

func TestComputeMerge_ExpiryDivergenceWarning(t *testing.T) {
	today := date(2026, 3, 1)

	tests := []struct {
		name     string
		incoming *time.Time
		want     bool
	}{
		{"close dates", datePtr(2027, 6, 10), false},
		{"exactly 30 days apart", datePtr(2027, 7, 1), false},
		{"31 days apart", datePtr(2027, 7, 2), true},
		{"far earlier incoming", datePtr(2026, 9, 1), true},
		{"incoming absent", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			incoming := incomingStock()
			incoming.ExpiryDate = tt.incoming

			plan, err := stock.ComputeMerge(existingBatch(), incoming, today)
			require.NoError(t, err)
			assert.Equal(t, tt.want, plan.ExpiryDivergenceWarning)
		})
	}
}

func TestComputeMerge_RejectsExpiredBatch(t *testing.T) {
	today := date(2026, 3, 1)

	existing := existingBatch()
	existing.ExpiryDate = datePtr(2026, 2, 1)

	_, err := stock.ComputeMerge(existing, incomingStock(), today)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMergeRejected))
}

func TestComputeMerge_Validation(t *testing.T) {
	today := date(2026, 3, 1)

	tests := []struct {
		name   string
		mutate func(*domain.IncomingStock)
	}{
		{"zero quantity", func(in *domain.IncomingStock) { in.Quantity = 0 }},
		{"negative quantity", func(in *domain.IncomingStock) { in.Quantity = -10 }},
		{"zero purchase price", func(in *domain.IncomingStock) { in.PurchasePrice = decimal.Zero }},
		{"negative selling price", func(in *domain.IncomingStock) { in.SellingPrice = money("-1.00") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			incoming := incomingStock()
			tt.mutate(&incoming)

			_, err := stock.ComputeMerge(existingBatch(), incoming, today)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))
		})
	}
}
