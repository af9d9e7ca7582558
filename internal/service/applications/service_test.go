package applications

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/orchard/internal/domain/models"
	"github.com/mamadbah2/orchard/internal/service/lifecycle"
	"github.com/mamadbah2/orchard/internal/service/movements"
)

type memoryStore struct {
	apps map[string]models.Application
}

func newMemoryStore() *memoryStore {
	return &memoryStore{apps: make(map[string]models.Application)}
}

func (m *memoryStore) Create(_ context.Context, app models.Application) error {
	m.apps[app.ID] = app
	return nil
}

func (m *memoryStore) Update(_ context.Context, app models.Application) error {
	if _, ok := m.apps[app.ID]; !ok {
		return models.ErrNotFound
	}
	m.apps[app.ID] = app
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (models.Application, error) {
	app, ok := m.apps[id]
	if !ok {
		return models.Application{}, models.ErrNotFound
	}
	return app, nil
}

func (m *memoryStore) List(_ context.Context, estado models.Estado) ([]models.Application, error) {
	var out []models.Application
	for _, app := range m.apps {
		if estado == "" || app.Estado == estado {
			out = append(out, app)
		}
	}
	return out, nil
}

type memoryMovements struct {
	items []models.DailyMovement
}

func (m *memoryMovements) Append(_ context.Context, mv models.DailyMovement) error {
	m.items = append(m.items, mv)
	return nil
}

func (m *memoryMovements) List(_ context.Context, appID, lotID string) ([]models.DailyMovement, error) {
	var out []models.DailyMovement
	for _, mv := range m.items {
		if mv.ApplicationID == appID && (lotID == "" || mv.LotID == lotID) {
			out = append(out, mv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memoryMovements) Delete(_ context.Context, appID, id string) error {
	for i, mv := range m.items {
		if mv.ApplicationID == appID && mv.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

type memoryCatalog struct {
	lots     map[string]models.CatalogLot
	products map[string]models.Product
	err      error
}

func (c *memoryCatalog) Lots(_ context.Context, ids []string) (map[string]models.CatalogLot, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[string]models.CatalogLot)
	for _, id := range ids {
		if lot, ok := c.lots[id]; ok {
			out[id] = lot
		}
	}
	return out, nil
}

func (c *memoryCatalog) Products(_ context.Context, ids []string) (map[string]models.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[string]models.Product)
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type recordingJournal struct {
	logged []models.DailyMovement
	err    error
}

func (j *recordingJournal) LogMovement(_ context.Context, _ string, mv models.DailyMovement) error {
	j.logged = append(j.logged, mv)
	return j.err
}

var fixedNow = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	store     *memoryStore
	movements *memoryMovements
	catalog   *memoryCatalog
	journal   *recordingJournal
}

func newFixture() fixture {
	f := fixture{
		store:     newMemoryStore(),
		movements: &memoryMovements{},
		catalog: &memoryCatalog{
			lots: map[string]models.CatalogLot{
				"L1": {ID: "L1", Name: "Lote 1", Census: models.Census{Large: 600, Medium: 400, Total: 1000}},
				"L2": {ID: "L2", Name: "Lote 2", Census: models.Census{Large: 500, Total: 500}},
			},
			products: map[string]models.Product{
				"fung": {ID: "fung", Name: "Fungicida", Unit: "L", Presentation: "Galón 4 L", UnitPrice: 30, Stock: 10},
				"adh":  {ID: "adh", Name: "Adherente", Unit: "L", Presentation: "Litro", UnitPrice: 5, Stock: 0},
			},
		},
		journal: &recordingJournal{},
	}
	f.svc = NewService(f.store, f.movements, f.catalog, nil,
		WithJournal(f.journal),
		WithLaborDayCost(40),
		WithNow(func() time.Time { return fixedNow }))
	return f
}

func sprayInput() CreateInput {
	return CreateInput{
		Name:    "Fumigación antracnosis",
		Type:    models.ApplicationSpray,
		Targets: []string{"Antracnosis"},
		PlanInput: PlanInput{
			Lots: []LotInput{
				{LotID: "L1", CalibrationPerTree: 20, ContainerSize: 200},
				{LotID: "L2", CalibrationPerTree: 20, ContainerSize: 200},
			},
			Mixtures: []MixtureInput{{
				Name: "Mezcla 1",
				Products: []ProductInput{
					{ProductID: "fung", DosePerContainer: 50, DoseUnit: models.DoseUnitCC},
					{ProductID: "adh", DosePerContainer: 10, DoseUnit: models.DoseUnitCC},
				},
				LotIDs: []string{"L1", "L2"},
			}},
		},
	}
}

func (f fixture) started(t *testing.T) models.Application {
	t.Helper()
	app, err := f.svc.Create(context.Background(), sprayInput())
	require.NoError(t, err)
	start := fixedNow.AddDate(0, 0, -1)
	app, err = f.svc.StartExecution(context.Background(), app.ID, StartInput{StartDate: &start, AcknowledgeShortfalls: true})
	require.NoError(t, err)
	return app
}

func TestCreate(t *testing.T) {
	f := newFixture()

	app, err := f.svc.Create(context.Background(), sprayInput())
	require.NoError(t, err)

	assert.Equal(t, models.EstadoCalculada, app.Estado)
	assert.Len(t, app.Calculations, 2)
	require.Len(t, app.Mixtures, 1)
	assert.NotEmpty(t, app.Mixtures[0].ID)
	// L1: 100 containers, L2: 50 containers
	assert.Equal(t, 7.5, app.Mixtures[0].Products[0].RequiredQuantity)
	assert.Equal(t, 1.5, app.Mixtures[0].Products[1].RequiredQuantity)

	require.Len(t, app.PurchaseList.Items, 2)
	assert.EqualValues(t, 0, app.PurchaseList.Items[0].PurchaseUnits)
	assert.EqualValues(t, 2, app.PurchaseList.Items[1].PurchaseUnits)
	assert.Equal(t, 1, app.PurchaseList.NoStockCount)

	stored, err := f.store.Get(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, app.ID, stored.ID)

	_, err = f.svc.Report(context.Background(), app.ID)
	require.ErrorIs(t, err, lifecycle.ErrOperationNotAllowed)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture()

	in := sprayInput()
	in.Lots[0].CalibrationPerTree = 0
	in.Mixtures[0].Products = append(in.Mixtures[0].Products, ProductInput{ProductID: "missing", DosePerContainer: 1, DoseUnit: models.DoseUnitCC})

	_, err := f.svc.Create(context.Background(), in)
	var verrs models.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs[0].Message, "missing not found")
	assert.Empty(t, f.store.apps)

	in = sprayInput()
	in.Lots[0].CalibrationPerTree = 0
	_, err = f.svc.Create(context.Background(), in)
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "lot L1", verrs[0].Entity)
}

func TestCreateCatalogFailurePropagates(t *testing.T) {
	f := newFixture()
	f.catalog.err = errors.New("sheets unavailable")

	_, err := f.svc.Create(context.Background(), sprayInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheets unavailable")
	assert.Empty(t, f.store.apps)
}

func TestUpdateMixturesOnlyWhilePlanned(t *testing.T) {
	f := newFixture()
	app, err := f.svc.Create(context.Background(), sprayInput())
	require.NoError(t, err)

	plan := sprayInput().PlanInput
	plan.Mixtures[0].LotIDs = []string{"L1"}
	app, err = f.svc.UpdateMixtures(context.Background(), app.ID, plan)
	require.NoError(t, err)
	assert.Len(t, app.Calculations, 1)
	assert.Equal(t, 5.0, app.Mixtures[0].Products[0].RequiredQuantity)

	start := fixedNow
	_, err = f.svc.StartExecution(context.Background(), app.ID, StartInput{StartDate: &start, AcknowledgeShortfalls: true})
	require.NoError(t, err)

	_, err = f.svc.UpdateMixtures(context.Background(), app.ID, plan)
	require.ErrorIs(t, err, lifecycle.ErrOperationNotAllowed)
}

func TestStartExecutionSoftGate(t *testing.T) {
	f := newFixture()
	app, err := f.svc.Create(context.Background(), sprayInput())
	require.NoError(t, err)
	start := fixedNow

	_, err = f.svc.StartExecution(context.Background(), app.ID, StartInput{StartDate: &start})
	var gate *StockGateError
	require.ErrorAs(t, err, &gate)
	require.Len(t, gate.Shortfalls, 1)
	assert.Equal(t, "adh", gate.Shortfalls[0].ProductID)
	assert.ErrorIs(t, err, lifecycle.ErrStockNotAcknowledged)

	stored, _ := f.store.Get(context.Background(), app.ID)
	assert.Equal(t, models.EstadoCalculada, stored.Estado)

	future := fixedNow.AddDate(0, 0, 2)
	_, err = f.svc.StartExecution(context.Background(), app.ID, StartInput{StartDate: &future, AcknowledgeShortfalls: true})
	require.ErrorIs(t, err, lifecycle.ErrStartDateInFuture)

	app, err = f.svc.StartExecution(context.Background(), app.ID, StartInput{StartDate: &start, AcknowledgeShortfalls: true})
	require.NoError(t, err)
	assert.Equal(t, models.EstadoEnEjecucion, app.Estado)
	assert.True(t, app.StockAcknowledged)
}

func TestRecordMovement(t *testing.T) {
	f := newFixture()
	app := f.started(t)

	containers := 50.0
	mv, progress, err := f.svc.RecordMovement(context.Background(), app.ID, MovementInput{
		LotID: "L1", ProductID: "fung", Quantity: 7, Responsible: "Carlos", Containers: &containers,
	})
	require.NoError(t, err)

	assert.Equal(t, 30.0, mv.UnitCost)
	assert.Equal(t, fixedNow, mv.Date)
	require.Len(t, f.journal.logged, 1)
	assert.Equal(t, 7.0, progress.Products[0].Consumed)
	assert.Equal(t, 93.33, progress.Products[0].PercentageUsed)
	require.Len(t, progress.Alerts, 1)
	assert.Equal(t, movements.AlertWarning, progress.Alerts[0].Level)

	lotProgress, err := f.svc.Progress(context.Background(), app.ID, "L1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, lotProgress.Products[0].Planned)
	assert.True(t, lotProgress.Products[0].Exceeded)

	progress, err = f.svc.DeleteMovement(context.Background(), app.ID, mv.ID)
	require.NoError(t, err)
	assert.Zero(t, progress.Products[0].Consumed)
	assert.Empty(t, progress.Alerts)
}

func TestRecordMovementValidation(t *testing.T) {
	f := newFixture()
	app, err := f.svc.Create(context.Background(), sprayInput())
	require.NoError(t, err)

	_, _, err = f.svc.RecordMovement(context.Background(), app.ID, MovementInput{LotID: "L1", ProductID: "fung", Quantity: 1, Responsible: "x"})
	require.ErrorIs(t, err, lifecycle.ErrOperationNotAllowed)

	app = f.started(t)
	_, _, err = f.svc.RecordMovement(context.Background(), app.ID, MovementInput{LotID: "L9", ProductID: "ghost", Quantity: 0})
	var verrs models.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 3)

	_, _, err = f.svc.RecordMovement(context.Background(), app.ID, MovementInput{LotID: "L1", ProductID: "ghost", Quantity: 1, Responsible: "x"})
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs[0].Message, "ghost")
}

func TestRecordMovementJournalFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.journal.err = errors.New("quota exceeded")
	app := f.started(t)

	_, _, err := f.svc.RecordMovement(context.Background(), app.ID, MovementInput{LotID: "L2", ProductID: "adh", Quantity: 0.5, Responsible: "Ana"})
	require.NoError(t, err)
	assert.Len(t, f.movements.items, 1)
}

func TestCloseWithoutApproval(t *testing.T) {
	f := newFixture()
	app := f.started(t)

	_, err := f.svc.Close(context.Background(), app.ID, CloseInput{Labor: models.LaborAllocation{Application: 3}})
	require.ErrorIs(t, err, lifecycle.ErrNoMovements)

	record := func(lot, product string, qty float64) {
		_, _, err := f.svc.RecordMovement(context.Background(), app.ID, MovementInput{LotID: lot, ProductID: product, Quantity: qty, Responsible: "Carlos"})
		require.NoError(t, err)
	}
	record("L1", "fung", 5)
	record("L2", "fung", 3)
	record("L1", "adh", 1)
	record("L2", "adh", 0.5)

	_, err = f.svc.Close(context.Background(), app.ID, CloseInput{})
	require.ErrorIs(t, err, lifecycle.ErrNoLabor)

	app, err = f.svc.Close(context.Background(), app.ID, CloseInput{Labor: models.LaborAllocation{Application: 3, Mixing: 1}, Observations: "sin novedad"})
	require.NoError(t, err)

	assert.Equal(t, models.EstadoCerrada, app.Estado)
	require.NotNil(t, app.Closure)
	assert.Equal(t, 40.0, app.Closure.LaborDayCost)
	assert.False(t, app.Closure.RequiresApproval)
	assert.InDelta(t, 6.67, app.Closure.MaxDeviationPct, 0.001)
	assert.Equal(t, 160.0, app.Closure.TotalLaborCost)
	assert.Equal(t, 240.0+7.5, app.Closure.TotalInputCost)
	require.Len(t, app.Closure.Lots, 2)
	assert.Equal(t, models.LaborAllocation{Application: 2, Mixing: 1}, app.Closure.Lots[0].Labor)

	_, _, err = f.svc.RecordMovement(context.Background(), app.ID, MovementInput{LotID: "L1", ProductID: "fung", Quantity: 1, Responsible: "x"})
	require.ErrorIs(t, err, lifecycle.ErrOperationNotAllowed)

	_, err = f.svc.Close(context.Background(), app.ID, CloseInput{Labor: models.LaborAllocation{Application: 1}})
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestCloseRequiresApproval(t *testing.T) {
	f := newFixture()
	app := f.started(t)

	_, _, err := f.svc.RecordMovement(context.Background(), app.ID, MovementInput{LotID: "L1", ProductID: "fung", Quantity: 10, Responsible: "Carlos"})
	require.NoError(t, err)

	app, err = f.svc.Close(context.Background(), app.ID, CloseInput{Labor: models.LaborAllocation{Application: 2}, LaborDayCost: 55})
	require.NoError(t, err)
	assert.Equal(t, models.EstadoPendienteAprobacion, app.Estado)
	assert.True(t, app.Closure.RequiresApproval)
	assert.Equal(t, 55.0, app.Closure.LaborDayCost)

	report, err := f.svc.Report(context.Background(), app.ID)
	require.NoError(t, err)
	assert.True(t, report.RequiresApproval)
	assert.Empty(t, report.ApprovedBy)

	_, err = f.svc.Approve(context.Background(), app.ID, ApproveInput{Approver: "  "})
	require.ErrorIs(t, err, lifecycle.ErrApproverMissing)

	app, err = f.svc.Approve(context.Background(), app.ID, ApproveInput{Approver: "Gerente", Note: "lluvia obligó a repetir"})
	require.NoError(t, err)
	assert.Equal(t, models.EstadoCerrada, app.Estado)
	assert.Equal(t, "Gerente", app.Closure.ApprovedBy)
	require.NotNil(t, app.Closure.ApprovedAt)

	_, err = f.svc.Approve(context.Background(), app.ID, ApproveInput{Approver: "Gerente"})
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestGetNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Get(context.Background(), "nope")
	require.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.svc.Report(context.Background(), "nope")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestCloseRejectsNegativeLabor(t *testing.T) {
	f := newFixture()
	app := f.started(t)

	_, _, err := f.svc.RecordMovement(context.Background(), app.ID, MovementInput{LotID: "L1", ProductID: "fung", Quantity: 7, Responsible: "Carlos"})
	require.NoError(t, err)

	_, err = f.svc.Close(context.Background(), app.ID, CloseInput{Labor: models.LaborAllocation{Application: 2, Mixing: -10, Transport: 9}})
	var verrs models.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Contains(t, verrs[0].Message, "mixing")

	_, err = f.svc.Close(context.Background(), app.ID, CloseInput{Labor: models.LaborAllocation{Application: 2}, LaborDayCost: -5})
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs[0].Message, "labor-day cost")

	stored, err := f.svc.Get(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EstadoEnEjecucion, stored.Estado)
	assert.Nil(t, stored.Closure)
}
