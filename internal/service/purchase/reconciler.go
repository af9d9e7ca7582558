// Package purchase reconciles required product totals against a stock snapshot and
// produces the purchase list.
package purchase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/orchard/internal/domain/models"
)

var firstNumber = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// ParsePresentationSize extracts the purchase unit size from a free-text commercial
// presentation such as "Bulto 25kg". It returns 1 when no positive number is found.
func ParsePresentationSize(presentation string) float64 {
	match := firstNumber.FindString(presentation)
	if match == "" {
		return 1
	}
	size, err := decimal.NewFromString(strings.Replace(match, ",", ".", 1))
	if err != nil || !size.IsPositive() {
		return 1
	}
	return size.InexactFloat64()
}

// KnownPresentationSize returns the recorded presentation size, or the positive number
// read from the presentation text. It returns 0 when neither is available.
func KnownPresentationSize(p models.Product) float64 {
	if p.PresentationSize > 0 {
		return p.PresentationSize
	}
	size, err := decimal.NewFromString(strings.Replace(firstNumber.FindString(p.Presentation), ",", ".", 1))
	if err != nil || !size.IsPositive() {
		return 0
	}
	return size.InexactFloat64()
}

// PresentationSize prefers the structured field and falls back to parsing the text.
func PresentationSize(p models.Product) float64 {
	if p.PresentationSize > 0 {
		return p.PresentationSize
	}
	return ParsePresentationSize(p.Presentation)
}

// Reconciler builds purchase lists.
type Reconciler struct {
	logger *zap.Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{logger: logger}
}

// Reconcile compares each required total with the stock snapshot. Products absent from
// the snapshot cannot be reconciled and are skipped with a warning.
func (r *Reconciler) Reconcile(required []models.ProductRequirement, stock map[string]models.Product) models.PurchaseList {
	list := models.PurchaseList{Items: make([]models.PurchaseListItem, 0, len(required))}
	total := decimal.Zero

	for _, req := range required {
		product, ok := stock[req.ProductID]
		if !ok {
			msg := fmt.Sprintf("product %s (%s) not found in stock snapshot", req.ProductID, req.ProductName)
			r.logger.Warn("skipping product missing from stock", zap.String("product_id", req.ProductID))
			list.Warnings = append(list.Warnings, msg)
			continue
		}

		item := BuildItem(req, product)
		switch {
		case item.UnitPrice <= 0:
			item.Alert = models.PurchaseAlertNoPrice
		case item.Stock == 0 && item.Shortfall > 0:
			item.Alert = models.PurchaseAlertNoStock
		default:
			item.Alert = models.PurchaseAlertNormal
		}

		if item.UnitPrice <= 0 {
			list.NoPriceCount++
		}
		if item.Stock == 0 && item.Shortfall > 0 {
			list.NoStockCount++
		}

		total = total.Add(decimal.NewFromFloat(item.EstimatedCost))
		list.Items = append(list.Items, item)
	}

	list.TotalCost = total.Ceil().InexactFloat64()
	return list
}

// BuildItem computes the shortfall, purchase units and estimated cost of one product.
func BuildItem(req models.ProductRequirement, product models.Product) models.PurchaseListItem {
	required := decimal.NewFromFloat(req.Quantity)
	stock := decimal.NewFromFloat(product.Stock)
	size := decimal.NewFromFloat(PresentationSize(product))
	price := decimal.NewFromFloat(product.UnitPrice)

	shortfall := decimal.Max(decimal.Zero, required.Sub(stock))
	units := shortfall.Div(size).Ceil()
	cost := units.Mul(size).Mul(price)

	name := req.ProductName
	if name == "" {
		name = product.Name
	}

	return models.PurchaseListItem{
		ProductID:        req.ProductID,
		ProductName:      name,
		Unit:             req.Unit,
		Stock:            product.Stock,
		Required:         req.Quantity,
		Shortfall:        shortfall.InexactFloat64(),
		Presentation:     product.Presentation,
		PresentationSize: size.InexactFloat64(),
		PurchaseUnits:    units.IntPart(),
		UnitPrice:        product.UnitPrice,
		EstimatedCost:    cost.Round(2).InexactFloat64(),
	}
}
