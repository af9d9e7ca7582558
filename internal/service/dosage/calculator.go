// Package dosage converts lot tree census and per-tree dosing rules into mixture volumes,
// fertilizer masses and per-product required quantities.
package dosage

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/orchard/internal/domain/models"
)

// DefaultBagSize is the fertilizer bag size used when a product has no known presentation.
const DefaultBagSize = 25

var thousand = decimal.NewFromInt(1000)

// CeilTo2 rounds up to two decimals. Under-provisioning costs more than a few extra
// grams, so quantities are never rounded down.
func CeilTo2(d decimal.Decimal) decimal.Decimal {
	return d.RoundCeil(2)
}

// Validate checks that the configuration is complete enough to run the calculator.
func Validate(appType models.ApplicationType, lots []models.LotSelection, mixtures []models.Mixture) models.ValidationErrors {
	var errs models.ValidationErrors

	if !appType.Valid() {
		errs.Add("application", fmt.Sprintf("unsupported application type %q", appType))
		return errs
	}

	lotsByID := make(map[string]models.LotSelection, len(lots))
	for _, lot := range lots {
		lotsByID[lot.LotID] = lot
		key := "lot " + lot.LotID
		if !lot.Census.Consistent() {
			errs.Add(key, fmt.Sprintf("census total %d does not match size classes %d", lot.Census.Total, lot.Census.Sum()))
		}
		if appType.UsesContainers() {
			if lot.CalibrationPerTree <= 0 {
				errs.Add(key, "missing calibration per tree")
			}
			if !lot.ContainerSize.Valid() {
				errs.Add(key, "missing or unsupported container size")
			}
		}
	}

	if len(mixtures) == 0 {
		errs.Add("application", "at least one mixture is required")
	}

	for _, mix := range mixtures {
		key := "mixture " + mix.Name
		if len(mix.Products) == 0 {
			errs.Add(key, "mixture has no products")
		}
		if len(mix.LotIDs) == 0 {
			errs.Add(key, "no lots assigned")
		}
		for _, lotID := range mix.LotIDs {
			if _, ok := lotsByID[lotID]; !ok {
				errs.Add(key, fmt.Sprintf("lot %s is not selected for this application", lotID))
			}
		}
		seen := make(map[string]bool, len(mix.Products))
		for _, p := range mix.Products {
			if seen[p.ProductID] {
				errs.Add(key, fmt.Sprintf("product %s listed twice", p.ProductID))
			}
			seen[p.ProductID] = true
			validateDose(&errs, appType, key+" / product "+p.ProductID, p.Dose)
		}
	}

	return errs
}

func validateDose(errs *models.ValidationErrors, appType models.ApplicationType, key string, dose models.Dose) {
	switch d := dose.(type) {
	case models.SprayDose:
		if !appType.UsesContainers() {
			errs.Add(key, "spray dose given for a fertilization application")
			return
		}
		if d.PerContainer <= 0 {
			errs.Add(key, "missing dose per container")
		}
		if !d.Unit.Valid() {
			errs.Add(key, "dose unit must be cc or g")
		}
	case models.FertilizationDose:
		if appType.UsesContainers() {
			errs.Add(key, "fertilization dose given for a spray or drench application")
			return
		}
		if d.Large < 0 || d.Medium < 0 || d.Small < 0 || d.Clonal < 0 {
			errs.Add(key, "doses must not be negative")
		}
		if d.Empty() {
			errs.Add(key, "needs at least one dose")
		}
	default:
		errs.Add(key, "missing dose")
	}
}

// CalculateLot computes the figures for one lot within one mixture. The inputs must have
// passed Validate.
func CalculateLot(appType models.ApplicationType, lot models.LotSelection, mix models.Mixture) models.LotCalculation {
	calc := models.LotCalculation{
		LotID:      lot.LotID,
		LotName:    lot.Name,
		MixtureID:  mix.ID,
		TotalTrees: lot.Census.Total,
		Products:   make([]models.ProductQuantity, 0, len(mix.Products)),
	}

	if appType.UsesContainers() {
		calculateSpray(&calc, lot, mix)
	} else {
		calculateFertilization(&calc, lot, mix)
	}

	return calc
}

func calculateSpray(calc *models.LotCalculation, lot models.LotSelection, mix models.Mixture) {
	volume := CeilTo2(decimal.NewFromInt(int64(lot.Census.Total)).Mul(decimal.NewFromFloat(lot.CalibrationPerTree)))
	containers := CeilTo2(volume.Div(decimal.NewFromInt(int64(lot.ContainerSize))))

	calc.Spray = &models.SprayFigures{
		MixtureVolume:  volume.InexactFloat64(),
		ContainerCount: containers.InexactFloat64(),
	}

	for _, p := range mix.Products {
		dose, ok := p.Dose.(models.SprayDose)
		if !ok {
			continue
		}
		qty := CeilTo2(containers.Mul(decimal.NewFromFloat(dose.PerContainer)).Div(thousand))
		calc.Products = append(calc.Products, models.ProductQuantity{ProductID: p.ProductID, Quantity: qty.InexactFloat64()})
	}
}

func calculateFertilization(calc *models.LotCalculation, lot models.LotSelection, mix models.Mixture) {
	large := decimal.NewFromInt(int64(lot.Census.Large))
	medium := decimal.NewFromInt(int64(lot.Census.Medium))
	small := decimal.NewFromInt(int64(lot.Census.Small))
	clonal := decimal.NewFromInt(int64(lot.Census.Clonal))

	var largeMass, mediumMass, smallMass, clonalMass, total decimal.Decimal
	bags := int64(0)
	allSized := len(mix.Products) > 0

	for _, p := range mix.Products {
		dose, ok := p.Dose.(models.FertilizationDose)
		if !ok {
			continue
		}
		l := large.Mul(decimal.NewFromFloat(dose.Large))
		m := medium.Mul(decimal.NewFromFloat(dose.Medium))
		s := small.Mul(decimal.NewFromFloat(dose.Small))
		c := clonal.Mul(decimal.NewFromFloat(dose.Clonal))

		largeMass = largeMass.Add(l)
		mediumMass = mediumMass.Add(m)
		smallMass = smallMass.Add(s)
		clonalMass = clonalMass.Add(c)

		qty := CeilTo2(l.Add(m).Add(s).Add(c))
		total = total.Add(qty)
		calc.Products = append(calc.Products, models.ProductQuantity{ProductID: p.ProductID, Quantity: qty.InexactFloat64()})

		if p.BagSize > 0 {
			bags += qty.Div(decimal.NewFromFloat(p.BagSize)).Ceil().IntPart()
		} else {
			allSized = false
		}
	}

	// Per-product bag sizes only apply when every product declares one.
	if !allSized {
		bags = total.Div(decimal.NewFromInt(DefaultBagSize)).Ceil().IntPart()
	}

	calc.Fertilization = &models.FertilizationFigures{
		TotalMass:  total.InexactFloat64(),
		LargeMass:  CeilTo2(largeMass).InexactFloat64(),
		MediumMass: CeilTo2(mediumMass).InexactFloat64(),
		SmallMass:  CeilTo2(smallMass).InexactFloat64(),
		ClonalMass: CeilTo2(clonalMass).InexactFloat64(),
		BagCount:   int(bags),
	}
}

// Calculate recomputes every per-lot calculation and the required quantity of every
// product in every mixture. The returned mixtures are copies; the inputs are not mutated.
func Calculate(appType models.ApplicationType, lots []models.LotSelection, mixtures []models.Mixture) ([]models.LotCalculation, []models.Mixture, error) {
	if err := Validate(appType, lots, mixtures).Err(); err != nil {
		return nil, nil, err
	}

	lotsByID := make(map[string]models.LotSelection, len(lots))
	for _, lot := range lots {
		lotsByID[lot.LotID] = lot
	}

	var calculations []models.LotCalculation
	out := make([]models.Mixture, 0, len(mixtures))

	for _, mix := range mixtures {
		totals := make(map[string]decimal.Decimal, len(mix.Products))
		for _, lotID := range mix.LotIDs {
			calc := CalculateLot(appType, lotsByID[lotID], mix)
			for _, pq := range calc.Products {
				totals[pq.ProductID] = totals[pq.ProductID].Add(decimal.NewFromFloat(pq.Quantity))
			}
			calculations = append(calculations, calc)
		}

		copied := mix
		copied.LotIDs = append([]string(nil), mix.LotIDs...)
		copied.Products = make([]models.ProductInMixture, len(mix.Products))
		for i, p := range mix.Products {
			p.RequiredQuantity = CeilTo2(totals[p.ProductID]).InexactFloat64()
			copied.Products[i] = p
		}
		out = append(out, copied)
	}

	return calculations, out, nil
}

// RequiredTotals sums the required quantity of each product across every mixture, in
// order of first appearance.
func RequiredTotals(mixtures []models.Mixture) []models.ProductRequirement {
	index := make(map[string]int)
	var totals []models.ProductRequirement
	sums := make(map[string]decimal.Decimal)

	for _, mix := range mixtures {
		for _, p := range mix.Products {
			if _, ok := index[p.ProductID]; !ok {
				index[p.ProductID] = len(totals)
				totals = append(totals, models.ProductRequirement{
					ProductID:   p.ProductID,
					ProductName: p.ProductName,
					Unit:        p.Unit,
				})
			}
			sums[p.ProductID] = sums[p.ProductID].Add(decimal.NewFromFloat(p.RequiredQuantity))
		}
	}

	for i := range totals {
		totals[i].Quantity = sums[totals[i].ProductID].InexactFloat64()
	}
	return totals
}
