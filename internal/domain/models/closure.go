package models

import "time"

// LaborAllocation counts labor-days (jornales) by activity.
type LaborAllocation struct {
	Application float64 `bson:"application" json:"application"`
	Mixing      float64 `bson:"mixing" json:"mixing"`
	Transport   float64 `bson:"transport" json:"transport"`
	Other       float64 `bson:"other" json:"other"`
}

// HasNegative reports whether any activity carries negative labor-days.
func (l LaborAllocation) HasNegative() bool {
	return l.Application < 0 || l.Mixing < 0 || l.Transport < 0 || l.Other < 0
}

// Total sums every activity.
func (l LaborAllocation) Total() float64 {
	return l.Application + l.Mixing + l.Transport + l.Other
}

// ProductComparison is the planned-vs-actual figure of one product.
type ProductComparison struct {
	ProductID   string  `bson:"product_id" json:"product_id"`
	ProductName string  `bson:"product_name" json:"product_name"`
	Unit        string  `bson:"unit" json:"unit"`
	Planned     float64 `bson:"planned" json:"planned"`
	Actual      float64 `bson:"actual" json:"actual"`
	Difference  float64 `bson:"difference" json:"difference"`
	// DeviationPct is zero when nothing was planned.
	DeviationPct float64 `bson:"deviation_pct" json:"deviation_pct"`
	UnitCost     float64 `bson:"unit_cost" json:"unit_cost"`
	TotalCost    float64 `bson:"total_cost" json:"total_cost"`
}

// LotClosureDetail is the closure breakdown of one lot. Nil pointers mean the figure is
// undefined, not zero.
type LotClosureDetail struct {
	LotID string `bson:"lot_id" json:"lot_id"`
	Name  string `bson:"name" json:"name"`
	Trees int    `bson:"trees" json:"trees"`

	PlannedContainers float64 `bson:"planned_containers" json:"planned_containers"`
	ActualContainers  float64 `bson:"actual_containers" json:"actual_containers"`
	PlannedVolume     float64 `bson:"planned_volume" json:"planned_volume"`
	ActualVolume      float64 `bson:"actual_volume" json:"actual_volume"`
	PlannedMass       float64 `bson:"planned_mass" json:"planned_mass"`
	ActualMass        float64 `bson:"actual_mass" json:"actual_mass"`

	ContainersDeviationPct *float64 `bson:"containers_deviation_pct,omitempty" json:"containers_deviation_pct,omitempty"`
	VolumeDeviationPct     *float64 `bson:"volume_deviation_pct,omitempty" json:"volume_deviation_pct,omitempty"`
	MassDeviationPct       *float64 `bson:"mass_deviation_pct,omitempty" json:"mass_deviation_pct,omitempty"`

	Labor       LaborAllocation `bson:"labor" json:"labor"`
	LaborDays   float64         `bson:"labor_days" json:"labor_days"`
	LaborCost   float64         `bson:"labor_cost" json:"labor_cost"`
	InputCost   float64         `bson:"input_cost" json:"input_cost"`
	TotalCost   float64         `bson:"total_cost" json:"total_cost"`
	CostPerTree float64         `bson:"cost_per_tree" json:"cost_per_tree"`

	TreesPerLaborDay *float64 `bson:"trees_per_labor_day,omitempty" json:"trees_per_labor_day,omitempty"`
	QuantityPerTree  *float64 `bson:"quantity_per_tree,omitempty" json:"quantity_per_tree,omitempty"`
}

// Closure (cierre) is the reconciliation record written when execution ends.
type Closure struct {
	ClosedAt         time.Time           `bson:"closed_at" json:"closed_at"`
	Labor            LaborAllocation     `bson:"labor" json:"labor"`
	LaborDayCost     float64             `bson:"labor_day_cost" json:"labor_day_cost"`
	Comparisons      []ProductComparison `bson:"comparisons" json:"comparisons"`
	Lots             []LotClosureDetail  `bson:"lots" json:"lots"`
	TotalInputCost   float64             `bson:"total_input_cost" json:"total_input_cost"`
	TotalLaborCost   float64             `bson:"total_labor_cost" json:"total_labor_cost"`
	TotalCost        float64             `bson:"total_cost" json:"total_cost"`
	MaxDeviationPct  float64             `bson:"max_deviation_pct" json:"max_deviation_pct"`
	RequiresApproval bool                `bson:"requires_approval" json:"requires_approval"`
	Observations     string              `bson:"observations,omitempty" json:"observations,omitempty"`
	Warnings         []string            `bson:"warnings,omitempty" json:"warnings,omitempty"`

	ApprovedBy   string     `bson:"approved_by,omitempty" json:"approved_by,omitempty"`
	ApprovedAt   *time.Time `bson:"approved_at,omitempty" json:"approved_at,omitempty"`
	ApprovalNote string     `bson:"approval_note,omitempty" json:"approval_note,omitempty"`
}
