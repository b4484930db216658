package services

import (
	"context"
	"fmt"
	"sort"

	"aeroclub-shop/models"
	"aeroclub-shop/policy"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// GetOrderStats recomputes the overview on every call. Administrators only.
func (s *OrderService) GetOrderStats(ctx context.Context, req Requester) (*models.OrderStats, error) {
	if !s.authz.Allowed(req.Role, policy.OrdersStats) {
		return nil, fmt.Errorf("admin access required: %w", ErrForbidden)
	}

	groups, err := s.orders.SummarizeByStatus(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("service: failed to aggregate orders")
		return nil, fmt.Errorf("failed to aggregate orders: %w", err)
	}
	stats := summarize(groups)

	recent, err := s.orders.List(ctx, models.OrderFilter{}, recentOrdersLimit)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("service: failed to load recent orders")
		return nil, fmt.Errorf("failed to load recent orders: %w", err)
	}
	if stats.RecentOrders, err = s.populate(ctx, recent); err != nil {
		return nil, err
	}
	return stats, nil
}

// summarize folds per-status groups into the overall totals. The average is
// rounded half away from zero to two decimals.
func summarize(groups []models.StatusBreakdown) *models.OrderStats {
	count := 0
	revenue := decimal.Zero
	for _, g := range groups {
		count += g.Count
		revenue = revenue.Add(decimal.NewFromFloat(g.Revenue))
	}

	avg := decimal.Zero
	if count > 0 {
		avg = revenue.Div(decimal.NewFromInt(int64(count))).Round(2)
	}

	byStatus := make([]models.StatusBreakdown, len(groups))
	copy(byStatus, groups)
	sort.Slice(byStatus, func(i, j int) bool { return byStatus[i].OrderStatus < byStatus[j].OrderStatus })

	return &models.OrderStats{
		TotalOrders:    count,
		TotalRevenue:   revenue.InexactFloat64(),
		AvgOrderValue:  avg.InexactFloat64(),
		OrdersByStatus: byStatus,
		RecentOrders:   []models.OrderView{},
	}
}
