// Package closure reconciles planned and actual figures of an application into product
// comparisons, per-lot cost details and the approval decision.
package closure

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/orchard/internal/domain/models"
	"github.com/mamadbah2/orchard/internal/service/movements"
)

// ApprovalThreshold is the deviation percentage above which a closure needs a manager.
const ApprovalThreshold = 20

var hundred = decimal.NewFromInt(100)

// Input gathers everything the validator reads. It is never mutated.
type Input struct {
	Type         models.ApplicationType
	Lots         []models.LotSelection
	Calculations []models.LotCalculation
	Planned      []models.ProductRequirement
	Movements    []models.DailyMovement
	Labor        models.LaborAllocation
	LaborDayCost float64
}

// Result is the closure output handed to the report renderer.
type Result struct {
	Comparisons      []models.ProductComparison
	Lots             []models.LotClosureDetail
	TotalInputCost   float64
	TotalLaborCost   float64
	TotalCost        float64
	MaxDeviationPct  float64
	RequiresApproval bool
	Warnings         []string
}

// ResolveUnitCosts returns, per product, the first non-zero unit cost seen in the
// movement list. Later prices for the same product are ignored.
func ResolveUnitCosts(mvs []models.DailyMovement) map[string]float64 {
	costs := make(map[string]float64)
	for _, mv := range mvs {
		if mv.UnitCost == 0 {
			continue
		}
		if _, ok := costs[mv.ProductID]; !ok {
			costs[mv.ProductID] = mv.UnitCost
		}
	}
	return costs
}

// DeviationPct is (actual - planned) / planned * 100, rounded to two decimals. The second
// result is false when planned is not positive.
func DeviationPct(planned, actual float64) (float64, bool) {
	d, ok := deviation(planned, actual)
	if !ok {
		return 0, false
	}
	return d.Round(2).InexactFloat64(), true
}

func deviation(planned, actual float64) (decimal.Decimal, bool) {
	p := decimal.NewFromFloat(planned)
	if !p.IsPositive() {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(actual).Sub(p).Div(p).Mul(hundred), true
}

// CompareProducts builds the planned-vs-actual list in plan order, followed by unplanned
// products in order of first movement.
func CompareProducts(planned []models.ProductRequirement, mvs []models.DailyMovement, costs map[string]float64) []models.ProductComparison {
	index := make(map[string]int, len(planned))
	rows := make([]models.ProductComparison, 0, len(planned))
	actual := make(map[string]decimal.Decimal)

	for _, p := range planned {
		if _, ok := index[p.ProductID]; ok {
			continue
		}
		index[p.ProductID] = len(rows)
		rows = append(rows, models.ProductComparison{ProductID: p.ProductID, ProductName: p.ProductName, Unit: p.Unit, Planned: p.Quantity})
	}
	for _, mv := range mvs {
		if _, ok := index[mv.ProductID]; !ok {
			index[mv.ProductID] = len(rows)
			rows = append(rows, models.ProductComparison{ProductID: mv.ProductID, ProductName: mv.ProductName, Unit: mv.Unit})
		}
		actual[mv.ProductID] = actual[mv.ProductID].Add(decimal.NewFromFloat(mv.Quantity))
	}

	for i := range rows {
		row := &rows[i]
		a := actual[row.ProductID]
		cost := costs[row.ProductID]

		row.Actual = a.InexactFloat64()
		row.Difference = a.Sub(decimal.NewFromFloat(row.Planned)).InexactFloat64()
		row.DeviationPct, _ = DeviationPct(row.Planned, row.Actual)
		row.UnitCost = cost
		row.TotalCost = a.Mul(decimal.NewFromFloat(cost)).Round(2).InexactFloat64()
	}
	return rows
}

// MaxDeviation returns the largest absolute deviation across products, recomputed from
// planned and actual quantities without rounding.
func MaxDeviation(rows []models.ProductComparison) float64 {
	largest := decimal.Zero
	for _, row := range rows {
		d, ok := deviation(row.Planned, row.Actual)
		if !ok {
			continue
		}
		if d = d.Abs(); d.GreaterThan(largest) {
			largest = d
		}
	}
	return largest.InexactFloat64()
}

// RequiresApproval applies the strict approval threshold.
func RequiresApproval(maxDeviation float64) bool {
	return maxDeviation > ApprovalThreshold
}

// ApportionLabor splits labor-days by the lot's share of trees. Each activity is rounded
// to the nearest whole day on its own, so the apportioned sum can differ from the total.
func ApportionLabor(labor models.LaborAllocation, lotTrees, totalTrees int) models.LaborAllocation {
	if totalTrees <= 0 {
		return models.LaborAllocation{}
	}
	share := func(days float64) float64 {
		return decimal.NewFromFloat(days).
			Mul(decimal.NewFromInt(int64(lotTrees))).
			Div(decimal.NewFromInt(int64(totalTrees))).
			Round(0).
			InexactFloat64()
	}
	return models.LaborAllocation{
		Application: share(labor.Application),
		Mixing:      share(labor.Mixing),
		Transport:   share(labor.Transport),
		Other:       share(labor.Other),
	}
}

// Validate runs the full reconciliation. It is a pure function of its input.
func Validate(in Input) Result {
	costs := ResolveUnitCosts(in.Movements)
	comparisons := CompareProducts(in.Planned, in.Movements, costs)
	maxDev := MaxDeviation(comparisons)

	res := Result{
		Comparisons:      comparisons,
		MaxDeviationPct:  decimal.NewFromFloat(maxDev).Round(2).InexactFloat64(),
		RequiresApproval: RequiresApproval(maxDev),
	}

	totalTrees := 0
	for _, lot := range in.Lots {
		totalTrees += lot.Census.Total
	}

	byLot := make(map[string][]models.DailyMovement)
	for _, mv := range in.Movements {
		if _, ok := lotIndex(in.Lots, mv.LotID); !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("movement %s references lot %s outside the application", mv.ID, mv.LotID))
			continue
		}
		byLot[mv.LotID] = append(byLot[mv.LotID], mv)
	}

	laborDayCost := decimal.NewFromFloat(in.LaborDayCost)
	for _, lot := range in.Lots {
		res.Lots = append(res.Lots, lotDetail(in, lot, byLot[lot.LotID], costs, totalTrees, laborDayCost))
	}

	inputCost := decimal.Zero
	for _, c := range comparisons {
		inputCost = inputCost.Add(decimal.NewFromFloat(c.TotalCost))
	}
	laborCost := decimal.NewFromFloat(in.Labor.Total()).Mul(laborDayCost)

	res.TotalInputCost = inputCost.Round(2).InexactFloat64()
	res.TotalLaborCost = laborCost.Round(2).InexactFloat64()
	res.TotalCost = inputCost.Add(laborCost).Round(2).InexactFloat64()
	return res
}

func lotDetail(in Input, lot models.LotSelection, mvs []models.DailyMovement, costs map[string]float64, totalTrees int, laborDayCost decimal.Decimal) models.LotClosureDetail {
	d := models.LotClosureDetail{LotID: lot.LotID, Name: lot.Name, Trees: lot.Census.Total}

	var plannedContainers, plannedVolume, plannedMass decimal.Decimal
	for _, calc := range in.Calculations {
		if calc.LotID != lot.LotID {
			continue
		}
		if calc.Spray != nil {
			plannedContainers = plannedContainers.Add(decimal.NewFromFloat(calc.Spray.ContainerCount))
			plannedVolume = plannedVolume.Add(decimal.NewFromFloat(calc.Spray.MixtureVolume))
		}
		if calc.Fertilization != nil {
			plannedMass = plannedMass.Add(decimal.NewFromFloat(calc.Fertilization.TotalMass))
			// bags count as containers for fertilization
			plannedContainers = plannedContainers.Add(decimal.NewFromInt(int64(calc.Fertilization.BagCount)))
		}
	}

	actualContainers := decimal.NewFromFloat(movements.Containers(mvs))
	var actualMass, inputCost decimal.Decimal
	for _, mv := range mvs {
		qty := decimal.NewFromFloat(mv.Quantity)
		actualMass = actualMass.Add(qty)
		inputCost = inputCost.Add(qty.Mul(decimal.NewFromFloat(costs[mv.ProductID])))
	}
	actualVolume := actualContainers.Mul(decimal.NewFromInt(int64(lot.ContainerSize)))

	d.PlannedContainers = plannedContainers.InexactFloat64()
	d.ActualContainers = actualContainers.InexactFloat64()
	d.PlannedVolume = plannedVolume.InexactFloat64()
	d.ActualVolume = actualVolume.InexactFloat64()
	if !in.Type.UsesContainers() {
		d.PlannedMass = plannedMass.InexactFloat64()
		d.ActualMass = actualMass.InexactFloat64()
	}

	d.ContainersDeviationPct = deviationPtr(d.PlannedContainers, d.ActualContainers)
	d.VolumeDeviationPct = deviationPtr(d.PlannedVolume, d.ActualVolume)
	d.MassDeviationPct = deviationPtr(d.PlannedMass, d.ActualMass)

	d.Labor = ApportionLabor(in.Labor, lot.Census.Total, totalTrees)
	laborDays := decimal.NewFromFloat(d.Labor.Total())
	laborCost := laborDays.Mul(laborDayCost)

	d.LaborDays = laborDays.InexactFloat64()
	d.LaborCost = laborCost.Round(2).InexactFloat64()
	d.InputCost = inputCost.Round(2).InexactFloat64()
	total := inputCost.Add(laborCost)
	d.TotalCost = total.Round(2).InexactFloat64()

	trees := decimal.NewFromInt(int64(lot.Census.Total))
	if trees.IsPositive() {
		d.CostPerTree = total.Div(trees).Round(2).InexactFloat64()
	}

	if laborDays.IsPositive() {
		v := trees.Div(laborDays).Round(2).InexactFloat64()
		d.TreesPerLaborDay = &v
	}

	measured := actualMass
	if in.Type.UsesContainers() {
		measured = actualVolume
	}
	if measured.IsPositive() && trees.IsPositive() {
		v := measured.Div(trees).Round(4).InexactFloat64()
		d.QuantityPerTree = &v
	}

	return d
}

func deviationPtr(planned, actual float64) *float64 {
	v, ok := DeviationPct(planned, actual)
	if !ok {
		return nil
	}
	return &v
}

func lotIndex(lots []models.LotSelection, id string) (int, bool) {
	for i, lot := range lots {
		if lot.LotID == id {
			return i, true
		}
	}
	return 0, false
}
