package service_test

import (
	"testing"

	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/internal/inventory/service"
	"github.com/botiquin/botiquin-backend/pkg/dates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock pins today to 2025-06-15 (see ledger_test.go)

func alertItem(id, name string, expiry dates.Date, quantity, minimum int, discarded bool) *repository.Item {
	return &repository.Item{
		ID:         id,
		Name:       name,
		ExpiryDate: expiry,
		Quantity:   quantity,
		Minimum:    minimum,
		Discarded:  discarded,
	}
}

func TestAlertService_Classify(t *testing.T) {
	svc := service.NewAlertService(nil, testClock)

	items := []*repository.Item{
		// expired yesterday
		alertItem("a", "Expired Syrup", dates.New(2025, 6, 14), 30, 5, false),
		// expires today: not expired, near-expiry
		alertItem("b", "Insulin", dates.New(2025, 6, 15), 30, 5, false),
		// 45 days out: near-expiry
		alertItem("c", "Amoxicillin", dates.New(2025, 7, 30), 30, 5, false),
		// exactly 60 days out: still near-expiry (inclusive window)
		alertItem("d", "Gauze", dates.New(2025, 8, 14), 30, 5, false),
		// 61 days out: healthy
		alertItem("e", "Saline", dates.New(2025, 8, 15), 30, 5, false),
		// low stock only
		alertItem("f", "Ibuprofen", dates.New(2026, 6, 15), 5, 5, false),
		// expired AND low stock: both buckets
		alertItem("g", "Adrenaline", dates.New(2025, 1, 1), 0, 2, false),
		// discarded: no bucket, not counted
		alertItem("h", "Old Batch", dates.New(2024, 1, 1), 0, 5, true),
	}

	report := svc.Classify(items)

	ids := func(items []*repository.Item) []string {
		out := []string{}
		for _, item := range items {
			out = append(out, item.ID)
		}
		return out
	}

	assert.Equal(t, []string{"a", "g"}, ids(report.Expired))
	assert.Equal(t, []string{"b", "c", "d"}, ids(report.NearExpiry))
	assert.Equal(t, []string{"f", "g"}, ids(report.LowStock))
	assert.Equal(t, 7, report.Total)
}

func TestAlertService_Classify_ExpiryBucketsExclusive(t *testing.T) {
	svc := service.NewAlertService(nil, testClock)

	// sweep expiry dates around today; no item may land in both buckets
	for offset := -100; offset <= 100; offset++ {
		expiry := dates.Of(testClock().AddDate(0, 0, offset))
		report := svc.Classify([]*repository.Item{
			alertItem("x", "Sweep", expiry, 100, 1, false),
		})

		inBoth := len(report.Expired) == 1 && len(report.NearExpiry) == 1
		require.False(t, inBoth, "offset %d classified as both expired and near-expiry", offset)
	}
}

func TestAlertService_Classify_Empty(t *testing.T) {
	svc := service.NewAlertService(nil, testClock)

	report := svc.Classify(nil)
	assert.Empty(t, report.Expired)
	assert.Empty(t, report.NearExpiry)
	assert.Empty(t, report.LowStock)
	assert.Zero(t, report.Total)
}
