package stock

import (
	"sort"
	"time"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
)

// SelectBatchesFEFO builds a First-Expiry-First-Out allocation plan for
// the requested quantity of a medicine. Only batches matching the name
// case-insensitively, holding stock and not expired as of the reference
// date are eligible. The plan may undershoot the request when total
// stock is insufficient; callers compare AllocatedQuantity against the
// request and use TotalAvailable to report the shortfall.
func SelectBatchesFEFO(medicineName string, requiredQuantity int, batches []*domain.Batch, today time.Time) *domain.AllocationResult {
	result := &domain.AllocationResult{
		Allocations: make([]domain.Allocation, 0),
	}

	if requiredQuantity <= 0 {
		return result
	}

	eligible := eligibleBatches(medicineName, batches, today)
	for _, b := range eligible {
		result.TotalAvailable += b.Quantity
	}

	sortByExpiry(eligible)

	remaining := requiredQuantity
	for _, b := range eligible {
		if remaining == 0 {
			break
		}

		take := b.Quantity
		if take > remaining {
			take = remaining
		}

		result.Allocations = append(result.Allocations, domain.Allocation{
			BatchID:     b.ID,
			BatchNumber: b.BatchNumber,
			Quantity:    take,
			ExpiryDate:  b.ExpiryDate,
		})
		remaining -= take
	}

	return result
}

// BestBatchFEFO returns the first-ranked eligible batch for a medicine,
// or nil when no eligible batch exists. Used for single-batch sale flows.
func BestBatchFEFO(medicineName string, batches []*domain.Batch, today time.Time) *domain.Batch {
	eligible := eligibleBatches(medicineName, batches, today)
	if len(eligible) == 0 {
		return nil
	}

	sortByExpiry(eligible)
	return eligible[0]
}

// eligibleBatches filters to batches of the medicine that hold stock
// and are not expired as of the reference date.
func eligibleBatches(medicineName string, batches []*domain.Batch, today time.Time) []*domain.Batch {
	name := NormalizeName(medicineName)

	eligible := make([]*domain.Batch, 0, len(batches))
	for _, b := range batches {
		if NormalizeName(b.MedicineName) != name {
			continue
		}
		if b.Quantity <= 0 {
			continue
		}
		if IsExpired(b.ExpiryDate, today) {
			continue
		}
		eligible = append(eligible, b)
	}

	return eligible
}

// sortByExpiry orders batches ascending by expiry date. Batches without
// an expiry date sort last: a batch with a known nearer expiry always
// outranks one whose expiry is absent.
func sortByExpiry(batches []*domain.Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		bi, bj := batches[i], batches[j]

		if bi.ExpiryDate != nil && bj.ExpiryDate != nil {
			if !bi.ExpiryDate.Equal(*bj.ExpiryDate) {
				return bi.ExpiryDate.Before(*bj.ExpiryDate)
			}
		} else if bi.ExpiryDate != nil {
			return true
		} else if bj.ExpiryDate != nil {
			return false
		}

		// Equal or both absent: fall back to creation order
		return bi.CreatedAt.Before(bj.CreatedAt)
	})
}
