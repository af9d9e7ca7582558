// Package movements aggregates daily field consumption against planned quantities and
// raises threshold alerts. Totals are always rebuilt from the full movement list.
package movements

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/orchard/internal/domain/models"
)

// AlertLevel is the severity of a consumption alert.
type AlertLevel string

const (
	AlertError   AlertLevel = "error"
	AlertWarning AlertLevel = "warning"
	AlertInfo    AlertLevel = "info"
)

const (
	warningThreshold = 90
	infoThreshold    = 75
)

var hundred = decimal.NewFromInt(100)

// Usage is the consumption status of one product.
type Usage struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Unit        string  `json:"unit"`
	Planned     float64 `json:"planned"`
	Consumed    float64 `json:"consumed"`
	// Difference is planned minus consumed; negative once the plan is exceeded.
	Difference     float64 `json:"difference"`
	PercentageUsed float64 `json:"percentage_used"`
	Exceeded       bool    `json:"exceeded"`
}

// Alert flags a product approaching or exceeding its plan.
type Alert struct {
	ProductID      string     `json:"product_id"`
	ProductName    string     `json:"product_name"`
	Level          AlertLevel `json:"level"`
	PercentageUsed float64    `json:"percentage_used"`
	Message        string     `json:"message"`
}

// LotUsage groups consumption by lot.
type LotUsage struct {
	LotID      string             `json:"lot_id"`
	Movements  int                `json:"movements"`
	Containers float64            `json:"containers"`
	Products   map[string]float64 `json:"products"`
}

// Progress is the full accumulation result.
type Progress struct {
	Products []Usage    `json:"products"`
	Alerts   []Alert    `json:"alerts"`
	Lots     []LotUsage `json:"lots"`
}

// Accumulate sums movements per product and compares each total with the plan. Products
// appear in plan order, followed by unplanned products in order of first movement.
func Accumulate(mvs []models.DailyMovement, planned []models.ProductRequirement) Progress {
	index := make(map[string]int, len(planned))
	rows := make([]Usage, 0, len(planned))
	consumed := make(map[string]decimal.Decimal)

	for _, p := range planned {
		if _, ok := index[p.ProductID]; ok {
			continue
		}
		index[p.ProductID] = len(rows)
		rows = append(rows, Usage{ProductID: p.ProductID, ProductName: p.ProductName, Unit: p.Unit, Planned: p.Quantity})
	}

	lotIndex := make(map[string]int)
	var lots []LotUsage

	for _, mv := range mvs {
		if _, ok := index[mv.ProductID]; !ok {
			index[mv.ProductID] = len(rows)
			rows = append(rows, Usage{ProductID: mv.ProductID, ProductName: mv.ProductName, Unit: mv.Unit})
		}
		consumed[mv.ProductID] = consumed[mv.ProductID].Add(decimal.NewFromFloat(mv.Quantity))

		i, ok := lotIndex[mv.LotID]
		if !ok {
			i = len(lots)
			lotIndex[mv.LotID] = i
			lots = append(lots, LotUsage{LotID: mv.LotID, Products: make(map[string]float64)})
		}
		lots[i].Movements++
		lots[i].Products[mv.ProductID] = decimal.NewFromFloat(lots[i].Products[mv.ProductID]).Add(decimal.NewFromFloat(mv.Quantity)).InexactFloat64()
	}

	byLot := make(map[string][]models.DailyMovement, len(lots))
	for _, mv := range mvs {
		byLot[mv.LotID] = append(byLot[mv.LotID], mv)
	}
	for i := range lots {
		lots[i].Containers = Containers(byLot[lots[i].LotID])
	}

	progress := Progress{Products: rows, Lots: lots}
	for i := range progress.Products {
		row := &progress.Products[i]
		total := consumed[row.ProductID]
		plan := decimal.NewFromFloat(row.Planned)

		row.Consumed = total.InexactFloat64()
		row.Difference = plan.Sub(total).InexactFloat64()
		if pct, ok := usedPct(total, plan); ok {
			row.PercentageUsed = pct.Round(2).InexactFloat64()
		}
		row.Exceeded = total.GreaterThan(plan)

		if alert, ok := Evaluate(*row); ok {
			progress.Alerts = append(progress.Alerts, alert)
		}
	}

	return progress
}

func usedPct(consumed, planned decimal.Decimal) (decimal.Decimal, bool) {
	if !planned.IsPositive() {
		return decimal.Zero, false
	}
	return consumed.Div(planned).Mul(hundred), true
}

// Containers counts canecas once per lot and day. Every product movement of a tank load
// repeats the same count, so the largest count reported for a lot on a day is taken.
func Containers(mvs []models.DailyMovement) float64 {
	perDay := make(map[string]decimal.Decimal)
	for _, mv := range mvs {
		if mv.Containers == nil {
			continue
		}
		key := mv.LotID + "|" + mv.Date.Format("2006-01-02")
		if c := decimal.NewFromFloat(*mv.Containers); c.GreaterThan(perDay[key]) {
			perDay[key] = c
		}
	}
	total := decimal.Zero
	for _, c := range perDay {
		total = total.Add(c)
	}
	return total.InexactFloat64()
}

// Evaluate applies the alert policy to one product. The first matching rule wins.
// Thresholds are compared against the unrounded percentage.
func Evaluate(u Usage) (Alert, bool) {
	alert := Alert{ProductID: u.ProductID, ProductName: u.ProductName, PercentageUsed: u.PercentageUsed}
	pct, _ := usedPct(decimal.NewFromFloat(u.Consumed), decimal.NewFromFloat(u.Planned))
	switch {
	case u.Exceeded:
		alert.Level = AlertError
		alert.Message = fmt.Sprintf("%s exceeded plan: %.2f of %.2f %s", u.ProductName, u.Consumed, u.Planned, u.Unit)
	case pct.GreaterThanOrEqual(decimal.NewFromInt(warningThreshold)):
		alert.Level = AlertWarning
		alert.Message = fmt.Sprintf("%s at %.2f%% of plan", u.ProductName, u.PercentageUsed)
	case pct.GreaterThanOrEqual(decimal.NewFromInt(infoThreshold)):
		alert.Level = AlertInfo
		alert.Message = fmt.Sprintf("%s at %.2f%% of plan", u.ProductName, u.PercentageUsed)
	default:
		return Alert{}, false
	}
	return alert, true
}

// Filter keeps alerts at or above the given level.
func Filter(alerts []Alert, min AlertLevel) []Alert {
	rank := map[AlertLevel]int{AlertInfo: 0, AlertWarning: 1, AlertError: 2}
	var out []Alert
	for _, a := range alerts {
		if rank[a.Level] >= rank[min] {
			out = append(out, a)
		}
	}
	return out
}
