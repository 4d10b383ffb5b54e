package stock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/stock"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func TestIsExpired(t *testing.T) {
	today := date(2026, 3, 15)

	tests := []struct {
		name   string
		expiry *time.Time
		want   bool
	}{
		{"nil expiry never expires", nil, false},
		{"yesterday is expired", datePtr(2026, 3, 14), true},
		{"today is not expired", datePtr(2026, 3, 15), false},
		{"tomorrow is not expired", datePtr(2026, 3, 16), false},
		{"long past", datePtr(2024, 1, 1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stock.IsExpired(tt.expiry, today))
		})
	}
}

func TestIsExpired_IgnoresTimeOfDay(t *testing.T) {
	// An expiry date at 23:59 today must not count as expired when
	// compared against a reference time earlier the same day.
	expiry := time.Date(2026, 3, 15, 23, 59, 0, 0, time.UTC)
	today := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)

	assert.False(t, stock.IsExpired(&expiry, today))

	// And an expiry at 00:01 yesterday is expired regardless of clock time.
	expiry = time.Date(2026, 3, 14, 0, 1, 0, 0, time.UTC)
	assert.True(t, stock.IsExpired(&expiry, today))
}

func TestDaysUntilExpiry(t *testing.T) {
	today := date(2026, 3, 15)

	tests := []struct {
		name   string
		expiry time.Time
		want   int
	}{
		{"same day", date(2026, 3, 15), 0},
		{"tomorrow", date(2026, 3, 16), 1},
		{"in a week", date(2026, 3, 22), 7},
		{"yesterday", date(2026, 3, 14), -1},
		{"partial day rounds up", time.Date(2026, 3, 16, 18, 30, 0, 0, time.UTC), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stock.DaysUntilExpiry(tt.expiry, today))
		})
	}
}

func TestIsExpiringWithinDays(t *testing.T) {
	today := date(2026, 3, 15)

	tests := []struct {
		name   string
		expiry *time.Time
		days   int
		want   bool
	}{
		{"nil expiry", nil, 90, false},
		{"expires today", datePtr(2026, 3, 15), 30, true},
		{"expires inside window", datePtr(2026, 4, 1), 30, true},
		{"expires on window boundary", datePtr(2026, 4, 14), 30, true},
		{"expires past window", datePtr(2026, 4, 15), 30, false},
		{"already expired is not expiring", datePtr(2026, 3, 10), 30, false},
		{"zero-day window only matches today", datePtr(2026, 3, 15), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stock.IsExpiringWithinDays(tt.expiry, tt.days, today))
		})
	}
}

func TestExpiredAndExpiringAreMutuallyExclusive(t *testing.T) {
	today := date(2026, 3, 15)

	for _, expiry := range []*time.Time{
		nil,
		datePtr(2026, 3, 10),
		datePtr(2026, 3, 15),
		datePtr(2026, 5, 1),
		datePtr(2027, 1, 1),
	} {
		expired := stock.IsExpired(expiry, today)
		expiring := stock.IsExpiringWithinDays(expiry, 365, today)
		assert.False(t, expired && expiring, "a batch must never be both expired and expiring")
	}
}
