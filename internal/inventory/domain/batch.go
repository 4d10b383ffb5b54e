package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Batch represents a quantity of one medicine received under one
// supplier batch number, with its own prices and expiry.
type Batch struct {
	ID                string          `db:"id" json:"id"`
	MedicineName      string          `db:"medicine_name" json:"medicine_name"`
	BatchNumber       string          `db:"batch_number" json:"batch_number"`
	Quantity          int             `db:"quantity" json:"quantity"`
	SellingPrice      decimal.Decimal `db:"selling_price" json:"selling_price"`
	PurchasePrice     decimal.Decimal `db:"purchase_price" json:"purchase_price"`
	ExpiryDate        *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	ManufacturingDate time.Time       `db:"manufacturing_date" json:"manufacturing_date"`
	Company           string          `db:"company" json:"company"`
	RackLocation      string          `db:"rack_location" json:"rack_location"`
	SellingUnit       string          `db:"selling_unit" json:"selling_unit"`
	IsNarcotic        bool            `db:"is_narcotic" json:"is_narcotic"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// IncomingStock is a new delivery of an already known medicine/batch,
// captured at stock entry before it is merged into the existing batch.
type IncomingStock struct {
	Quantity          int             `json:"quantity"`
	SellingPrice      decimal.Decimal `json:"selling_price"`
	PurchasePrice     decimal.Decimal `json:"purchase_price"`
	ExpiryDate        *time.Time      `json:"expiry_date,omitempty"`
	ManufacturingDate time.Time       `json:"manufacturing_date"`
}

// DuplicateCheckResult reports whether a new stock entry collides with
// an existing batch. Computed fresh on every check, never persisted.
type DuplicateCheckResult struct {
	IsDuplicate            bool   `json:"is_duplicate"`
	ExistingBatch          *Batch `json:"existing_batch,omitempty"`
	SameNameDifferentBatch bool   `json:"same_name_different_batch"`
}

// Allocation is one batch's share of a FEFO allocation plan.
type Allocation struct {
	BatchID     string     `json:"batch_id"`
	BatchNumber string     `json:"batch_number"`
	Quantity    int        `json:"quantity"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
}

// AllocationResult is the ordered outcome of a FEFO allocation.
// Allocations may undershoot the requested quantity; TotalAvailable
// lets the caller detect the shortfall.
type AllocationResult struct {
	Allocations    []Allocation `json:"allocations"`
	TotalAvailable int          `json:"total_available"`
}

// AllocatedQuantity returns the sum of allocated quantities.
func (r *AllocationResult) AllocatedQuantity() int {
	total := 0
	for _, a := range r.Allocations {
		total += a.Quantity
	}
	return total
}

// Fulfills reports whether the plan covers the full requested quantity.
func (r *AllocationResult) Fulfills(required int) bool {
	return r.AllocatedQuantity() >= required
}

// MergeOutcome summarizes a completed stock merge for the caller.
type MergeOutcome struct {
	BatchID                 string          `json:"batch_id"`
	PreviousQuantity        int             `json:"previous_quantity"`
	AddedQuantity           int             `json:"added_quantity"`
	NewTotalQuantity        int             `json:"new_total_quantity"`
	NewSellingPrice         decimal.Decimal `json:"new_selling_price"`
	NewPurchasePrice        decimal.Decimal `json:"new_purchase_price"`
	ExpiryDate              *time.Time      `json:"expiry_date,omitempty"`
	ExpiryDivergenceWarning bool            `json:"expiry_divergence_warning"`
}
