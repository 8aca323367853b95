package service

import (
	"context"

	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/pkg/dates"
)

// AlertReport classifies the active item set. expired and nearExpiry
// are mutually exclusive; lowStock is an independent axis, so an item
// can appear there alongside either expiry bucket.
type AlertReport struct {
	Expired    []*repository.Item `json:"expired"`
	NearExpiry []*repository.Item `json:"nearExpiry"`
	LowStock   []*repository.Item `json:"lowStock"`
	Total      int                `json:"total"`
}

// AlertService derives alert state from current items. Classification
// is recomputed on every call, never persisted.
type AlertService struct {
	itemRepo *repository.ItemRepository
	clock    dates.Clock
}

// NewAlertService creates a new alert service
func NewAlertService(itemRepo *repository.ItemRepository, clock dates.Clock) *AlertService {
	return &AlertService{itemRepo: itemRepo, clock: clock}
}

// Classify buckets non-discarded items into expired, near-expiry and
// low-stock sets. Discarded items land in no bucket and do not count.
func (s *AlertService) Classify(items []*repository.Item) *AlertReport {
	report := &AlertReport{
		Expired:    []*repository.Item{},
		NearExpiry: []*repository.Item{},
		LowStock:   []*repository.Item{},
	}

	for _, item := range items {
		if item.Discarded {
			continue
		}
		report.Total++

		if dates.IsExpired(s.clock, item.ExpiryDate) {
			report.Expired = append(report.Expired, item)
		} else if dates.IsNearExpiry(s.clock, item.ExpiryDate) {
			report.NearExpiry = append(report.NearExpiry, item)
		}

		if item.Quantity <= item.Minimum {
			report.LowStock = append(report.LowStock, item)
		}
	}

	return report
}

// GetAlerts loads the active item set and classifies it
func (s *AlertService) GetAlerts(ctx context.Context) (*AlertReport, error) {
	items, err := s.itemRepo.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	return s.Classify(items), nil
}
