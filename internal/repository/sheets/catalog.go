package sheets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/orchard/internal/config"
	"github.com/mamadbah2/orchard/internal/domain/models"
)

// Product sheet columns: ID, Nombre, Unidad, Estado físico, Presentación,
// Tamaño presentación, Precio unitario, Stock.
const (
	colProductID = iota
	colProductName
	colProductUnit
	colProductState
	colProductPresentation
	colProductPresentationSize
	colProductPrice
	colProductStock
)

// Lot sheet columns: ID, Nombre, Sublotes, Área (ha), Grandes, Medianos, Pequeños,
// Clonales, Total.
const (
	colLotID = iota
	colLotName
	colLotSubLots
	colLotArea
	colLotLarge
	colLotMedium
	colLotSmall
	colLotClonal
	colLotTotal
)

// Catalog reads products, stock, prices and lots from the farm spreadsheet. Every call
// reads the sheet again so the stock snapshot is current.
type Catalog struct {
	repo          Repository
	productsRange string
	lotsRange     string
	logger        *zap.Logger
}

// NewCatalog builds a catalog over the configured ranges.
func NewCatalog(repo Repository, cfg config.SheetsConfig, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		repo:          repo,
		productsRange: cfg.ProductsRange,
		lotsRange:     cfg.LotsRange,
		logger:        logger,
	}
}

// AllProducts returns every parseable product row.
func (c *Catalog) AllProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := c.repo.ReadRange(ctx, c.productsRange)
	if err != nil {
		return nil, fmt.Errorf("load products range: %w", err)
	}

	products := make([]models.Product, 0, len(rows))
	for i, row := range rows {
		p, err := parseProduct(row)
		if err != nil {
			c.logger.Debug("skip product row", zap.Int("row", i), zap.Error(err))
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// AllLots returns every parseable lot row.
func (c *Catalog) AllLots(ctx context.Context) ([]models.CatalogLot, error) {
	rows, err := c.repo.ReadRange(ctx, c.lotsRange)
	if err != nil {
		return nil, fmt.Errorf("load lots range: %w", err)
	}

	lots := make([]models.CatalogLot, 0, len(rows))
	for i, row := range rows {
		lot, err := parseLot(row)
		if err != nil {
			c.logger.Debug("skip lot row", zap.Int("row", i), zap.Error(err))
			continue
		}
		lots = append(lots, lot)
	}
	return lots, nil
}

// Products returns the requested products keyed by id. Unknown ids are absent.
func (c *Catalog) Products(ctx context.Context, ids []string) (map[string]models.Product, error) {
	out := make(map[string]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	all, err := c.AllProducts(ctx)
	if err != nil {
		return nil, err
	}
	wanted := toSet(ids)
	for _, p := range all {
		if wanted[p.ID] {
			out[p.ID] = p
		}
	}
	return out, nil
}

// Lots returns the requested lots keyed by id. Unknown ids are absent.
func (c *Catalog) Lots(ctx context.Context, ids []string) (map[string]models.CatalogLot, error) {
	out := make(map[string]models.CatalogLot, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	all, err := c.AllLots(ctx)
	if err != nil {
		return nil, err
	}
	wanted := toSet(ids)
	for _, lot := range all {
		if wanted[lot.ID] {
			out[lot.ID] = lot
		}
	}
	return out, nil
}

func parseProduct(row []interface{}) (models.Product, error) {
	id := cell(row, colProductID)
	if id == "" {
		return models.Product{}, fmt.Errorf("missing product id")
	}

	size, err := optionalFloat(cell(row, colProductPresentationSize))
	if err != nil {
		return models.Product{}, fmt.Errorf("presentation size: %w", err)
	}
	price, err := optionalFloat(cell(row, colProductPrice))
	if err != nil {
		return models.Product{}, fmt.Errorf("unit price: %w", err)
	}
	stock, err := optionalFloat(cell(row, colProductStock))
	if err != nil {
		return models.Product{}, fmt.Errorf("stock: %w", err)
	}

	return models.Product{
		ID:               id,
		Name:             cell(row, colProductName),
		Unit:             cell(row, colProductUnit),
		PhysicalState:    cell(row, colProductState),
		Presentation:     cell(row, colProductPresentation),
		PresentationSize: size,
		UnitPrice:        price,
		Stock:            stock,
	}, nil
}

func parseLot(row []interface{}) (models.CatalogLot, error) {
	id := cell(row, colLotID)
	if id == "" {
		return models.CatalogLot{}, fmt.Errorf("missing lot id")
	}

	area, err := optionalFloat(cell(row, colLotArea))
	if err != nil {
		return models.CatalogLot{}, fmt.Errorf("area: %w", err)
	}

	counts := make([]int, 0, 5)
	for _, col := range []int{colLotLarge, colLotMedium, colLotSmall, colLotClonal, colLotTotal} {
		n, err := optionalInt(cell(row, col))
		if err != nil {
			return models.CatalogLot{}, fmt.Errorf("census column %d: %w", col, err)
		}
		counts = append(counts, n)
	}

	census := models.Census{Large: counts[0], Medium: counts[1], Small: counts[2], Clonal: counts[3], Total: counts[4]}
	if census.Total == 0 {
		census.Total = census.Sum()
	}

	return models.CatalogLot{
		ID:        id,
		Name:      cell(row, colLotName),
		SubLotIDs: splitList(cell(row, colLotSubLots)),
		AreaHa:    area,
		Census:    census,
	}, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
