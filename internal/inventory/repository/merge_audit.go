package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pharmstock/pharmstock-backend/pkg/database"
)

// MergeAuditEntry is one append-only record of a stock merge. Entries
// are never updated or deleted.
type MergeAuditEntry struct {
	ID               string          `db:"id" json:"id"`
	BatchID          string          `db:"batch_id" json:"batch_id"`
	MedicineName     string          `db:"medicine_name" json:"medicine_name"`
	BatchNumber      string          `db:"batch_number" json:"batch_number"`
	PreviousQuantity int             `db:"previous_quantity" json:"previous_quantity"`
	AddedQuantity    int             `db:"added_quantity" json:"added_quantity"`
	NewQuantity      int             `db:"new_quantity" json:"new_quantity"`
	PreviousSelling  decimal.Decimal `db:"previous_selling_price" json:"previous_selling_price"`
	NewSellingPrice  decimal.Decimal `db:"new_selling_price" json:"new_selling_price"`
	PreviousPurchase decimal.Decimal `db:"previous_purchase_price" json:"previous_purchase_price"`
	NewPurchasePrice decimal.Decimal `db:"new_purchase_price" json:"new_purchase_price"`
	ExpiryDivergence bool            `db:"expiry_divergence" json:"expiry_divergence"`
	PerformedBy      string          `db:"performed_by" json:"performed_by"`
	Note             *string         `db:"note" json:"note,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// MergeAuditRepository handles merge audit persistence
type MergeAuditRepository struct {
	db *database.DB
}

// NewMergeAuditRepository creates a new merge audit repository
func NewMergeAuditRepository(db *database.DB) *MergeAuditRepository {
	return &MergeAuditRepository{db: db}
}

// Create appends a merge audit entry
func (r *MergeAuditRepository) Create(ctx context.Context, entry *MergeAuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO merge_audit_entries (
			id, batch_id, medicine_name, batch_number,
			previous_quantity, added_quantity, new_quantity,
			previous_selling_price, new_selling_price,
			previous_purchase_price, new_purchase_price,
			expiry_divergence, performed_by, note
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at
	`

	return r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.BatchID, entry.MedicineName, entry.BatchNumber,
		entry.PreviousQuantity, entry.AddedQuantity, entry.NewQuantity,
		entry.PreviousSelling, entry.NewSellingPrice,
		entry.PreviousPurchase, entry.NewPurchasePrice,
		entry.ExpiryDivergence, entry.PerformedBy, entry.Note,
	).Scan(&entry.CreatedAt)
}

// ListByBatch lists the merge history of one batch, newest first
func (r *MergeAuditRepository) ListByBatch(ctx context.Context, batchID string, limit, offset int) ([]*MergeAuditEntry, error) {
	var entries []*MergeAuditEntry
	query := `
		SELECT * FROM merge_audit_entries
		WHERE batch_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &entries, query, batchID, limit, offset); err != nil {
		return nil, err
	}
	return entries, nil
}

// CountByBatch returns the number of merge entries for a batch
func (r *MergeAuditRepository) CountByBatch(ctx context.Context, batchID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM merge_audit_entries WHERE batch_id = $1`
	if err := r.db.GetContext(ctx, &count, query, batchID); err != nil {
		return 0, err
	}
	return count, nil
}
