package stock

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

// expiryDivergenceWarnDays is the gap between existing and incoming
// expiry dates beyond which the operator is warned. A signal only,
// never a blocking condition.
const expiryDivergenceWarnDays = 30

// MergePlan is the computed outcome of merging incoming stock into an
// existing batch, ready to be persisted as a single row update.
type MergePlan struct {
	PreviousQuantity  int
	AddedQuantity     int
	NewTotalQuantity  int
	PreviousSelling   decimal.Decimal
	NewSellingPrice   decimal.Decimal
	PreviousPurchase  decimal.Decimal
	NewPurchasePrice  decimal.Decimal
	ExpiryDate        *time.Time
	ManufacturingDate time.Time

	// ExpiryDivergenceWarning is set when the two expiry dates differ
	// by more than expiryDivergenceWarnDays.
	ExpiryDivergenceWarning bool
}

// ComputeMerge calculates the merged quantity, the quantity-weighted
// average purchase price rounded to cents, and the reconciled dates
// for merging incoming stock into an existing batch.
//
// The selling price is not averaged: the incoming price wins, since it
// reflects current supplier pricing. Expiry and manufacturing dates
// each become the later of the two. A batch that is already expired as
// of the reference date refuses the merge outright; expired stock must
// not absorb a new delivery and resurface as current.
func ComputeMerge(existing *domain.Batch, incoming domain.IncomingStock, today time.Time) (*MergePlan, error) {
	details := make(map[string]string)
	if incoming.Quantity <= 0 {
		details["quantity"] = "must be positive"
	}
	if !incoming.PurchasePrice.IsPositive() {
		details["purchase_price"] = "must be positive"
	}
	if !incoming.SellingPrice.IsPositive() {
		details["selling_price"] = "must be positive"
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	if IsExpired(existing.ExpiryDate, today) {
		return nil, errors.MergeRejected("existing batch is expired; enter the delivery as a new batch")
	}

	newTotal := existing.Quantity + incoming.Quantity

	existingValue := decimal.NewFromInt(int64(existing.Quantity)).Mul(existing.PurchasePrice)
	incomingValue := decimal.NewFromInt(int64(incoming.Quantity)).Mul(incoming.PurchasePrice)
	avgPurchase := existingValue.Add(incomingValue).
		Div(decimal.NewFromInt(int64(newTotal))).
		Round(2)

	plan := &MergePlan{
		PreviousQuantity:  existing.Quantity,
		AddedQuantity:     incoming.Quantity,
		NewTotalQuantity:  newTotal,
		PreviousSelling:   existing.SellingPrice,
		NewSellingPrice:   incoming.SellingPrice,
		PreviousPurchase:  existing.PurchasePrice,
		NewPurchasePrice:  avgPurchase,
		ExpiryDate:        laterDate(existing.ExpiryDate, incoming.ExpiryDate),
		ManufacturingDate: laterManufacturing(existing.ManufacturingDate, incoming.ManufacturingDate),
	}

	if existing.ExpiryDate != nil && incoming.ExpiryDate != nil {
		gap := DaysUntilExpiry(*incoming.ExpiryDate, *existing.ExpiryDate)
		if gap < 0 {
			gap = -gap
		}
		plan.ExpiryDivergenceWarning = gap > expiryDivergenceWarnDays
	}

	return plan, nil
}

// laterDate returns the later of two optional dates; nil when both are absent.
func laterDate(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.After(*a) {
		return b
	}
	return a
}

// laterManufacturing returns the more recent production date, treating
// a zero incoming date as absent.
func laterManufacturing(existing, incoming time.Time) time.Time {
	if incoming.IsZero() || incoming.Before(existing) {
		return existing
	}
	return incoming
}
