package sheets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/orchard/internal/config"
	"github.com/mamadbah2/orchard/internal/domain/models"
)

type stubRepository struct {
	ranges  map[string][][]interface{}
	written map[string][][]interface{}
	err     error
}

func (s *stubRepository) WriteRow(_ context.Context, sheetRange string, values []interface{}) error {
	if s.err != nil {
		return s.err
	}
	if s.written == nil {
		s.written = make(map[string][][]interface{})
	}
	s.written[sheetRange] = append(s.written[sheetRange], values)
	return nil
}

func (s *stubRepository) ReadRange(_ context.Context, sheetRange string) ([][]interface{}, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ranges[sheetRange], nil
}

var sheetsCfg = config.SheetsConfig{ProductsRange: "Productos!A2:H", LotsRange: "Lotes!A2:I"}

func TestCatalogProducts(t *testing.T) {
	repo := &stubRepository{ranges: map[string][][]interface{}{
		"Productos!A2:H": {
			{"urea", "Urea", "kg", "Sólido", "Bulto 50kg", "", float64(2400), float64(120)},
			{"fung", "Fungicida", "L", "Líquido", "Galón", "3,785", "45,5", "0"},
			{"", "Sin id"},
			{"bad", "Malo", "kg", "", "", "", "caro", ""},
		},
	}}
	catalog := NewCatalog(repo, sheetsCfg, nil)

	products, err := catalog.Products(context.Background(), []string{"urea", "fung", "bad", "ghost"})
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, models.Product{
		ID: "urea", Name: "Urea", Unit: "kg", PhysicalState: "Sólido", Presentation: "Bulto 50kg",
		UnitPrice: 2400, Stock: 120,
	}, products["urea"])
	assert.Equal(t, 3.785, products["fung"].PresentationSize)
	assert.Equal(t, 45.5, products["fung"].UnitPrice)
	assert.Zero(t, products["fung"].Stock)

	empty, err := catalog.Products(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCatalogLots(t *testing.T) {
	repo := &stubRepository{ranges: map[string][][]interface{}{
		"Lotes!A2:I": {
			{"L1", "Lote 1", "1A, 1B", "2.5", "600", "300", "100", "0", "1000"},
			{"L2", "Lote 2", "", "1", float64(200), float64(50)},
			{"L3", "Lote 3", "", "1", "10.5"},
		},
	}}
	catalog := NewCatalog(repo, sheetsCfg, nil)

	lots, err := catalog.Lots(context.Background(), []string{"L1", "L2", "L3"})
	require.NoError(t, err)
	require.Len(t, lots, 2)

	assert.Equal(t, []string{"1A", "1B"}, lots["L1"].SubLotIDs)
	assert.Equal(t, 2.5, lots["L1"].AreaHa)
	assert.Equal(t, models.Census{Large: 600, Medium: 300, Small: 100, Total: 1000}, lots["L1"].Census)
	// missing total is derived from the size classes
	assert.Equal(t, 250, lots["L2"].Census.Total)
}

func TestCatalogReadError(t *testing.T) {
	catalog := NewCatalog(&stubRepository{err: errors.New("quota")}, sheetsCfg, nil)

	_, err := catalog.Lots(context.Background(), []string{"L1"})
	require.ErrorContains(t, err, "quota")
}

func TestParseFloat(t *testing.T) {
	cases := map[string]float64{
		"25":        25,
		"25,5":      25.5,
		"1,234.50":  1234.5,
		" 3.785 ":   3.785,
		"1.234,5":   1234.5,
		"1.234.567": 1234567,
		"1,234,567": 1234567,
		"-12,75":    -12.75,
	}
	for in, want := range cases {
		got, err := parseFloat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseFloat("")
	assert.Error(t, err)
	_, err = optionalInt("2.5")
	assert.Error(t, err)
}

func TestMovementJournal(t *testing.T) {
	repo := &stubRepository{}
	journal := NewMovementJournal(repo, "Movimientos!A:K", nil)
	containers := 12.0

	err := journal.LogMovement(context.Background(), "Fumigación marzo", models.DailyMovement{
		ID: "mv1", Date: time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC), LotID: "L1", ProductID: "fung",
		ProductName: "Fungicida", Quantity: 2.5, Unit: "L", UnitCost: 45.5, Responsible: "Ana", Containers: &containers,
	})
	require.NoError(t, err)

	rows := repo.written["Movimientos!A:K"]
	require.Len(t, rows, 1)
	assert.Equal(t, []interface{}{"2026-03-04", "Fumigación marzo", "L1", "fung", "Fungicida", 2.5, "L", 45.5, "Ana", 12.0, ""}, rows[0])

	repo.err = errors.New("quota")
	err = journal.LogMovement(context.Background(), "x", models.DailyMovement{ID: "mv2"})
	require.ErrorContains(t, err, "mv2")
}
