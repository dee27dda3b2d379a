package compliance

import (
	"context"
	"math"
	"time"

	"github.com/Dan9191/decembrrr/internal/apperr"
	"github.com/Dan9191/decembrrr/internal/calendar"
	"github.com/Dan9191/decembrrr/internal/models"
)

// HeatmapPercent is round(payers / activeMembers * 100), bounded to [0, 100].
// It is 0 when the class has no active members.
func HeatmapPercent(payers, activeMembers int) int {
	if activeMembers <= 0 || payers <= 0 {
		return 0
	}
	pct := int(math.Round(float64(payers) / float64(activeMembers) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}

// MonthlyHeatmap computes the payer percentage of every day of month that
// has at least one deposit. txs may contain entries outside the month.
func MonthlyHeatmap(ctx context.Context, txs []models.Transaction, year int, month time.Month, activeMembers int, loc *time.Location) (*models.Heatmap, error) {
	if month < time.January || month > time.December {
		return nil, apperr.InvalidArgument("month %d is out of range", month)
	}
	if activeMembers < 0 {
		return nil, apperr.InvalidArgument("active member count %d is negative", activeMembers)
	}
	if loc == nil {
		loc = time.UTC
	}

	payers := PayersByDate(txs, loc)
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	hm := &models.Heatmap{
		Year:          year,
		Month:         int(month),
		ActiveMembers: activeMembers,
		Days:          []models.HeatmapDay{},
	}
	err := calendar.EachDay(ctx, first, monthEnd(first), func(day time.Time) error {
		key := calendar.Format(day)
		n, ok := payers[key]
		if !ok {
			return nil
		}
		pct := HeatmapPercent(n, activeMembers)
		hm.Days = append(hm.Days, models.HeatmapDay{
			Date:    key,
			Percent: pct,
			Band:    string(HeatmapBandOf(pct)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hm, nil
}
