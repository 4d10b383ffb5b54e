package stock

import (
	"strings"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
)

// NormalizeName canonicalizes a medicine name or batch number for
// matching: surrounding whitespace is stripped and case is folded.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// GroupByMedicine partitions batches by normalized medicine name.
// Within each group batches are sorted by expiry date with absent
// expiry last, matching FEFO allocation order for consistent display.
// No filtering is applied: expired and exhausted batches stay visible.
func GroupByMedicine(batches []*domain.Batch) map[string][]*domain.Batch {
	groups := make(map[string][]*domain.Batch)

	for _, b := range batches {
		key := NormalizeName(b.MedicineName)
		groups[key] = append(groups[key], b)
	}

	for _, group := range groups {
		sortByExpiry(group)
	}

	return groups
}
