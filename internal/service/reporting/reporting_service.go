// Package reporting turns closed applications and consumption progress into report data
// objects and short WhatsApp texts.
package reporting

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/orchard/internal/domain/models"
)

const dateLayout = "2006-01-02"

// ErrNoClosure is returned when an application has not been closed yet.
var ErrNoClosure = errors.New("reporting: application has no closure")

// ClosureReport is the flat data object handed to external report rendering.
type ClosureReport struct {
	ApplicationID string                 `json:"application_id"`
	Name          string                 `json:"name"`
	Type          models.ApplicationType `json:"type"`
	Estado        models.Estado          `json:"estado"`
	Targets       []string               `json:"targets,omitempty"`
	StartDate     *time.Time             `json:"start_date,omitempty"`
	ClosedAt      time.Time              `json:"closed_at"`
	TotalTrees    int                    `json:"total_trees"`
	TotalAreaHa   float64                `json:"total_area_ha"`

	Products []models.ProductComparison `json:"products"`
	Lots     []models.LotClosureDetail  `json:"lots"`

	Labor          models.LaborAllocation `json:"labor"`
	LaborDays      float64                `json:"labor_days"`
	LaborDayCost   float64                `json:"labor_day_cost"`
	TotalInputCost float64                `json:"total_input_cost"`
	TotalLaborCost float64                `json:"total_labor_cost"`
	TotalCost      float64                `json:"total_cost"`
	CostPerTree    float64                `json:"cost_per_tree"`
	CostPerHa      float64                `json:"cost_per_ha"`

	MaxDeviationPct  float64    `json:"max_deviation_pct"`
	RequiresApproval bool       `json:"requires_approval"`
	ApprovedBy       string     `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	ApprovalNote     string     `json:"approval_note,omitempty"`
	Observations     string     `json:"observations,omitempty"`
	Warnings         []string   `json:"warnings,omitempty"`
}

// BuildClosureReport flattens the closure of an application.
func BuildClosureReport(app models.Application) (ClosureReport, error) {
	c := app.Closure
	if c == nil {
		return ClosureReport{}, ErrNoClosure
	}

	trees := 0
	area := decimal.Zero
	for _, lot := range app.Lots {
		trees += lot.Census.Total
		area = area.Add(decimal.NewFromFloat(lot.AreaHa))
	}

	report := ClosureReport{
		ApplicationID:    app.ID,
		Name:             app.Name,
		Type:             app.Type,
		Estado:           app.Estado,
		Targets:          app.Targets,
		StartDate:        app.StartDate,
		ClosedAt:         c.ClosedAt,
		TotalTrees:       trees,
		TotalAreaHa:      area.InexactFloat64(),
		Products:         c.Comparisons,
		Lots:             c.Lots,
		Labor:            c.Labor,
		LaborDays:        c.Labor.Total(),
		LaborDayCost:     c.LaborDayCost,
		TotalInputCost:   c.TotalInputCost,
		TotalLaborCost:   c.TotalLaborCost,
		TotalCost:        c.TotalCost,
		MaxDeviationPct:  c.MaxDeviationPct,
		RequiresApproval: c.RequiresApproval,
		ApprovedBy:       c.ApprovedBy,
		ApprovedAt:       c.ApprovedAt,
		ApprovalNote:     c.ApprovalNote,
		Observations:     c.Observations,
		Warnings:         c.Warnings,
	}

	total := decimal.NewFromFloat(c.TotalCost)
	if trees > 0 {
		report.CostPerTree = total.Div(decimal.NewFromInt(int64(trees))).Round(2).InexactFloat64()
	}
	if area.IsPositive() {
		report.CostPerHa = total.Div(area).Round(2).InexactFloat64()
	}
	return report, nil
}
