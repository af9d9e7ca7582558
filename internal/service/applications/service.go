// Package applications orchestrates the lifecycle of a field application: planning,
// purchase reconciliation, execution tracking and closure.
package applications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/orchard/internal/domain/models"
	"github.com/mamadbah2/orchard/internal/service/closure"
	"github.com/mamadbah2/orchard/internal/service/dosage"
	"github.com/mamadbah2/orchard/internal/service/lifecycle"
	"github.com/mamadbah2/orchard/internal/service/movements"
	"github.com/mamadbah2/orchard/internal/service/purchase"
	"github.com/mamadbah2/orchard/internal/service/reporting"
)

// Store persists Application aggregates.
type Store interface {
	Create(ctx context.Context, app models.Application) error
	Update(ctx context.Context, app models.Application) error
	Get(ctx context.Context, id string) (models.Application, error)
	List(ctx context.Context, estado models.Estado) ([]models.Application, error)
}

// MovementStore persists daily movements. List returns movements ordered by date, then
// creation time; an empty lotID returns every lot.
type MovementStore interface {
	Append(ctx context.Context, mv models.DailyMovement) error
	List(ctx context.Context, applicationID, lotID string) ([]models.DailyMovement, error)
	Delete(ctx context.Context, applicationID, movementID string) error
}

// Catalog resolves lots and products by id. Unknown ids are absent from the result maps.
type Catalog interface {
	Lots(ctx context.Context, ids []string) (map[string]models.CatalogLot, error)
	Products(ctx context.Context, ids []string) (map[string]models.Product, error)
}

// Journal mirrors recorded movements to a secondary log. Failures are not fatal.
type Journal interface {
	LogMovement(ctx context.Context, appName string, mv models.DailyMovement) error
}

// StockGateError is the soft gate returned when execution would start with insufficient
// stock. Callers may retry with the acknowledgement flag set.
type StockGateError struct {
	Shortfalls []models.PurchaseListItem
}

func (e *StockGateError) Error() string {
	names := make([]string, 0, len(e.Shortfalls))
	for _, item := range e.Shortfalls {
		names = append(names, item.ProductName)
	}
	return fmt.Sprintf("insufficient stock for %s", strings.Join(names, ", "))
}

func (e *StockGateError) Unwrap() error { return lifecycle.ErrStockNotAcknowledged }

// Service implements the application lifecycle operations.
type Service struct {
	store        Store
	movements    MovementStore
	catalog      Catalog
	journal      Journal
	machine      *lifecycle.Machine
	reconciler   *purchase.Reconciler
	laborDayCost float64
	logger       *zap.Logger
	now          func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithJournal mirrors movements to the given journal.
func WithJournal(j Journal) Option {
	return func(s *Service) { s.journal = j }
}

// WithLaborDayCost sets the labor-day cost used when a closure request omits it.
func WithLaborDayCost(cost float64) Option {
	return func(s *Service) { s.laborDayCost = cost }
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires an application service.
func NewService(store Store, mvStore MovementStore, catalog Catalog, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:      store,
		movements:  mvStore,
		catalog:    catalog,
		machine:    lifecycle.New(),
		reconciler: purchase.NewReconciler(logger.Named("purchase")),
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create plans a new application and stores it in the initial state.
func (s *Service) Create(ctx context.Context, in CreateInput) (models.Application, error) {
	var verrs models.ValidationErrors
	if strings.TrimSpace(in.Name) == "" {
		verrs.Add("application", "name required")
	}
	if !in.Type.Valid() {
		verrs.Add("application", fmt.Sprintf("unsupported application type %q", in.Type))
	}
	if err := verrs.Err(); err != nil {
		return models.Application{}, err
	}

	now := s.now()
	app := models.Application{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Type:      in.Type,
		Targets:   in.Targets,
		CreatedAt: now,
	}

	if err := s.plan(ctx, &app, in.Lots, in.Mixtures); err != nil {
		return models.Application{}, err
	}
	app.Estado = s.machine.Initial()
	app.UpdatedAt = now

	if err := s.store.Create(ctx, app); err != nil {
		return models.Application{}, fmt.Errorf("create application: %w", err)
	}

	s.logger.Info("application planned",
		zap.String("application_id", app.ID),
		zap.String("type", string(app.Type)),
		zap.Int("lots", len(app.Lots)),
		zap.Int("mixtures", len(app.Mixtures)))
	return app, nil
}

// Get loads an application.
func (s *Service) Get(ctx context.Context, id string) (models.Application, error) {
	app, err := s.store.Get(ctx, id)
	if err != nil {
		return models.Application{}, fmt.Errorf("load application %s: %w", id, err)
	}
	return app, nil
}

// List returns applications, optionally filtered by state.
func (s *Service) List(ctx context.Context, estado models.Estado) ([]models.Application, error) {
	apps, err := s.store.List(ctx, estado)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// UpdateMixtures replaces lots and mixtures and recomputes every derived figure.
func (s *Service) UpdateMixtures(ctx context.Context, id string, in PlanInput) (models.Application, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return models.Application{}, err
	}
	if err := s.machine.Allows(app.Estado, lifecycle.OpEditMixtures); err != nil {
		return models.Application{}, err
	}

	if err := s.plan(ctx, &app, in.Lots, in.Mixtures); err != nil {
		return models.Application{}, err
	}
	app.UpdatedAt = s.now()

	if err := s.store.Update(ctx, app); err != nil {
		return models.Application{}, fmt.Errorf("update application: %w", err)
	}
	return app, nil
}

// PurchaseList recomputes the purchase list against current stock without storing it.
func (s *Service) PurchaseList(ctx context.Context, id string) (models.PurchaseList, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return models.PurchaseList{}, err
	}
	return s.reconcile(ctx, app.Mixtures)
}

// StartExecution moves a planned application into execution. Insufficient stock is
// reported as *StockGateError unless acknowledged.
func (s *Service) StartExecution(ctx context.Context, id string, in StartInput) (models.Application, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return models.Application{}, err
	}
	if !s.machine.Permits(app.Estado, lifecycle.EventStart) {
		return models.Application{}, fmt.Errorf("%w: start from %q", lifecycle.ErrInvalidTransition, app.Estado)
	}

	list, err := s.reconcile(ctx, app.Mixtures)
	if err != nil {
		return models.Application{}, err
	}
	shortfalls := list.Shortfalls()

	next, err := s.machine.Fire(app.Estado, lifecycle.EventStart, lifecycle.Facts{
		Now:               s.now(),
		StartDate:         in.StartDate,
		Shortfalls:        len(shortfalls),
		StockAcknowledged: in.AcknowledgeShortfalls,
	})
	if errors.Is(err, lifecycle.ErrStockNotAcknowledged) {
		return models.Application{}, &StockGateError{Shortfalls: shortfalls}
	}
	if err != nil {
		return models.Application{}, err
	}

	app.PurchaseList = list
	app.StartDate = in.StartDate
	app.StockAcknowledged = in.AcknowledgeShortfalls && len(shortfalls) > 0
	app.Estado = next
	app.UpdatedAt = s.now()

	if err := s.store.Update(ctx, app); err != nil {
		return models.Application{}, fmt.Errorf("start application: %w", err)
	}

	s.logger.Info("application execution started",
		zap.String("application_id", app.ID),
		zap.Int("shortfalls", len(shortfalls)),
		zap.Bool("acknowledged", app.StockAcknowledged))
	return app, nil
}

// RecordMovement stores a field consumption event and returns the recomputed progress.
func (s *Service) RecordMovement(ctx context.Context, id string, in MovementInput) (models.DailyMovement, movements.Progress, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return models.DailyMovement{}, movements.Progress{}, err
	}
	if err := s.machine.Allows(app.Estado, lifecycle.OpRecordMovement); err != nil {
		return models.DailyMovement{}, movements.Progress{}, err
	}

	var verrs models.ValidationErrors
	if _, ok := app.Lot(in.LotID); !ok {
		verrs.Add("movement", fmt.Sprintf("lot %s is not part of this application", in.LotID))
	}
	if in.Quantity <= 0 {
		verrs.Add("movement", "quantity must be positive")
	}
	if in.Containers != nil && *in.Containers < 0 {
		verrs.Add("movement", "containers must not be negative")
	}
	if strings.TrimSpace(in.Responsible) == "" {
		verrs.Add("movement", "responsible required")
	}
	if err := verrs.Err(); err != nil {
		return models.DailyMovement{}, movements.Progress{}, err
	}

	products, err := s.catalog.Products(ctx, []string{in.ProductID})
	if err != nil {
		return models.DailyMovement{}, movements.Progress{}, fmt.Errorf("load product %s: %w", in.ProductID, err)
	}
	product, ok := products[in.ProductID]
	if !ok {
		verrs.Add("movement", fmt.Sprintf("product %s not found in catalog", in.ProductID))
		return models.DailyMovement{}, movements.Progress{}, verrs
	}

	now := s.now()
	date := now
	if in.Date != nil {
		date = *in.Date
	}

	mv := models.DailyMovement{
		ID:            uuid.NewString(),
		ApplicationID: app.ID,
		Date:          date,
		LotID:         in.LotID,
		ProductID:     product.ID,
		ProductName:   product.Name,
		Unit:          product.Unit,
		Quantity:      in.Quantity,
		UnitCost:      product.UnitPrice,
		Responsible:   strings.TrimSpace(in.Responsible),
		Note:          in.Note,
		Containers:    in.Containers,
		CreatedAt:     now,
	}

	if err := s.movements.Append(ctx, mv); err != nil {
		return models.DailyMovement{}, movements.Progress{}, fmt.Errorf("append movement: %w", err)
	}

	if s.journal != nil {
		if err := s.journal.LogMovement(ctx, app.Name, mv); err != nil {
			s.logger.Warn("failed to mirror movement", zap.String("movement_id", mv.ID), zap.Error(err))
		}
	}

	progress, err := s.progress(ctx, app, "")
	if err != nil {
		return models.DailyMovement{}, movements.Progress{}, err
	}
	return mv, progress, nil
}

// DeleteMovement removes a movement and returns the recomputed progress.
func (s *Service) DeleteMovement(ctx context.Context, id, movementID string) (movements.Progress, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return movements.Progress{}, err
	}
	if err := s.machine.Allows(app.Estado, lifecycle.OpDeleteMovement); err != nil {
		return movements.Progress{}, err
	}

	if err := s.movements.Delete(ctx, app.ID, movementID); err != nil {
		return movements.Progress{}, fmt.Errorf("delete movement %s: %w", movementID, err)
	}

	s.logger.Info("movement deleted", zap.String("application_id", app.ID), zap.String("movement_id", movementID))
	return s.progress(ctx, app, "")
}

// Movements lists recorded movements, optionally for one lot.
func (s *Service) Movements(ctx context.Context, id, lotID string) ([]models.DailyMovement, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	mvs, err := s.movements.List(ctx, id, lotID)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return mvs, nil
}

// Progress recomputes consumption against plan, optionally restricted to one lot.
func (s *Service) Progress(ctx context.Context, id, lotID string) (movements.Progress, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return movements.Progress{}, err
	}
	return s.progress(ctx, app, lotID)
}

// Close runs the closure validator and moves the application to Cerrada or to
// Pendiente de Aprobación.
func (s *Service) Close(ctx context.Context, id string, in CloseInput) (models.Application, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return models.Application{}, err
	}

	var verrs models.ValidationErrors
	for _, activity := range []struct {
		name string
		days float64
	}{
		{"application", in.Labor.Application},
		{"mixing", in.Labor.Mixing},
		{"transport", in.Labor.Transport},
		{"other", in.Labor.Other},
	} {
		if activity.days < 0 {
			verrs.Add("labor", fmt.Sprintf("%s labor-days must not be negative", activity.name))
		}
	}
	if in.LaborDayCost < 0 {
		verrs.Add("labor", "labor-day cost must not be negative")
	}
	if err := verrs.Err(); err != nil {
		return models.Application{}, err
	}

	mvs, err := s.movements.List(ctx, app.ID, "")
	if err != nil {
		return models.Application{}, fmt.Errorf("list movements: %w", err)
	}

	facts := lifecycle.Facts{Now: s.now(), Movements: len(mvs), Labor: in.Labor}
	if err := s.machine.Check(app.Estado, lifecycle.EventClose, facts); err != nil {
		return models.Application{}, err
	}

	laborDayCost := in.LaborDayCost
	if laborDayCost == 0 {
		laborDayCost = s.laborDayCost
	}

	res := closure.Validate(closure.Input{
		Type:         app.Type,
		Lots:         app.Lots,
		Calculations: app.Calculations,
		Planned:      dosage.RequiredTotals(app.Mixtures),
		Movements:    mvs,
		Labor:        in.Labor,
		LaborDayCost: laborDayCost,
	})
	for _, w := range res.Warnings {
		s.logger.Warn("closure warning", zap.String("application_id", app.ID), zap.String("warning", w))
	}

	facts.RequiresApproval = res.RequiresApproval
	next, err := s.machine.Fire(app.Estado, lifecycle.EventClose, facts)
	if err != nil {
		return models.Application{}, err
	}

	app.Closure = &models.Closure{
		ClosedAt:         facts.Now,
		Labor:            in.Labor,
		LaborDayCost:     laborDayCost,
		Comparisons:      res.Comparisons,
		Lots:             res.Lots,
		TotalInputCost:   res.TotalInputCost,
		TotalLaborCost:   res.TotalLaborCost,
		TotalCost:        res.TotalCost,
		MaxDeviationPct:  res.MaxDeviationPct,
		RequiresApproval: res.RequiresApproval,
		Observations:     in.Observations,
		Warnings:         res.Warnings,
	}
	app.Estado = next
	app.UpdatedAt = facts.Now

	if err := s.store.Update(ctx, app); err != nil {
		return models.Application{}, fmt.Errorf("close application: %w", err)
	}

	s.logger.Info("application closed",
		zap.String("application_id", app.ID),
		zap.String("estado", string(app.Estado)),
		zap.Float64("max_deviation_pct", res.MaxDeviationPct),
		zap.Float64("total_cost", res.TotalCost))
	return app, nil
}

// Approve records the managerial approval of a closure pending approval.
func (s *Service) Approve(ctx context.Context, id string, in ApproveInput) (models.Application, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return models.Application{}, err
	}

	if app.Closure == nil {
		return models.Application{}, fmt.Errorf("%w: application %s has no closure record", lifecycle.ErrInvalidTransition, app.ID)
	}

	now := s.now()
	approver := strings.TrimSpace(in.Approver)
	next, err := s.machine.Fire(app.Estado, lifecycle.EventApprove, lifecycle.Facts{Now: now, Approver: approver})
	if err != nil {
		return models.Application{}, err
	}

	app.Closure.ApprovedBy = approver
	app.Closure.ApprovedAt = &now
	app.Closure.ApprovalNote = in.Note
	app.Estado = next
	app.UpdatedAt = now

	if err := s.store.Update(ctx, app); err != nil {
		return models.Application{}, fmt.Errorf("approve application: %w", err)
	}

	s.logger.Info("application closure approved", zap.String("application_id", app.ID), zap.String("approver", approver))
	return app, nil
}

// Report builds the closure report of an application pending approval or closed.
func (s *Service) Report(ctx context.Context, id string) (reporting.ClosureReport, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return reporting.ClosureReport{}, err
	}
	if err := s.machine.Allows(app.Estado, lifecycle.OpRenderReport); err != nil {
		return reporting.ClosureReport{}, err
	}
	return reporting.BuildClosureReport(app)
}

func (s *Service) plan(ctx context.Context, app *models.Application, lotInputs []LotInput, mixInputs []MixtureInput) error {
	lots, mixtures, err := s.resolve(ctx, app.Type, lotInputs, mixInputs)
	if err != nil {
		return err
	}

	calculations, computed, err := dosage.Calculate(app.Type, lots, mixtures)
	if err != nil {
		return err
	}

	list, err := s.reconcile(ctx, computed)
	if err != nil {
		return err
	}

	app.Lots = lots
	app.Mixtures = computed
	app.Calculations = calculations
	app.PurchaseList = list
	return nil
}

// resolve merges catalog data into the caller's lot and mixture inputs.
func (s *Service) resolve(ctx context.Context, appType models.ApplicationType, lotInputs []LotInput, mixInputs []MixtureInput) ([]models.LotSelection, []models.Mixture, error) {
	var verrs models.ValidationErrors
	if len(lotInputs) == 0 {
		verrs.Add("application", "at least one lot is required")
	}

	lotIDs := make([]string, 0, len(lotInputs))
	for _, l := range lotInputs {
		lotIDs = append(lotIDs, l.LotID)
	}
	var productIDs []string
	for _, m := range mixInputs {
		for _, p := range m.Products {
			productIDs = append(productIDs, p.ProductID)
		}
	}

	catalogLots, err := s.catalog.Lots(ctx, lotIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load lots: %w", err)
	}
	catalogProducts, err := s.catalog.Products(ctx, productIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load products: %w", err)
	}

	lots := make([]models.LotSelection, 0, len(lotInputs))
	seen := make(map[string]bool, len(lotInputs))
	for _, in := range lotInputs {
		if seen[in.LotID] {
			verrs.Add("lot "+in.LotID, "lot selected twice")
			continue
		}
		seen[in.LotID] = true

		cl, ok := catalogLots[in.LotID]
		if !ok {
			verrs.Add("lot "+in.LotID, "lot not found in catalog")
			continue
		}
		lots = append(lots, models.LotSelection{
			LotID:              cl.ID,
			Name:               cl.Name,
			SubLotIDs:          cl.SubLotIDs,
			AreaHa:             cl.AreaHa,
			Census:             cl.Census,
			CalibrationPerTree: in.CalibrationPerTree,
			ContainerSize:      models.ContainerSize(in.ContainerSize),
		})
	}

	mixtures := make([]models.Mixture, 0, len(mixInputs))
	for i, in := range mixInputs {
		mix := models.Mixture{
			ID:     in.ID,
			Name:   strings.TrimSpace(in.Name),
			LotIDs: append([]string(nil), in.LotIDs...),
		}
		if mix.ID == "" {
			mix.ID = uuid.NewString()
		}
		if mix.Name == "" {
			mix.Name = fmt.Sprintf("Mezcla %d", i+1)
		}
		for _, pin := range in.Products {
			product, ok := catalogProducts[pin.ProductID]
			if !ok {
				verrs.Add("mixture "+mix.Name, fmt.Sprintf("product %s not found in catalog", pin.ProductID))
				continue
			}
			mix.Products = append(mix.Products, models.ProductInMixture{
				ProductID:   product.ID,
				ProductName: product.Name,
				Unit:        product.Unit,
				Dose:        pin.dose(appType),
				BagSize:     purchase.KnownPresentationSize(product),
			})
		}
		mixtures = append(mixtures, mix)
	}

	if err := verrs.Err(); err != nil {
		return nil, nil, err
	}
	return lots, mixtures, nil
}

func (s *Service) reconcile(ctx context.Context, mixtures []models.Mixture) (models.PurchaseList, error) {
	required := dosage.RequiredTotals(mixtures)
	ids := make([]string, 0, len(required))
	for _, r := range required {
		ids = append(ids, r.ProductID)
	}

	stock, err := s.catalog.Products(ctx, ids)
	if err != nil {
		return models.PurchaseList{}, fmt.Errorf("load stock snapshot: %w", err)
	}
	return s.reconciler.Reconcile(required, stock), nil
}

func (s *Service) progress(ctx context.Context, app models.Application, lotID string) (movements.Progress, error) {
	mvs, err := s.movements.List(ctx, app.ID, lotID)
	if err != nil {
		return movements.Progress{}, fmt.Errorf("list movements: %w", err)
	}

	planned := dosage.RequiredTotals(app.Mixtures)
	if lotID != "" {
		planned = plannedForLot(app.Calculations, planned, lotID)
	}
	return movements.Accumulate(mvs, planned), nil
}

// plannedForLot restricts planned totals to the quantities computed for one lot.
func plannedForLot(calcs []models.LotCalculation, totals []models.ProductRequirement, lotID string) []models.ProductRequirement {
	perProduct := make(map[string]decimal.Decimal)
	for _, c := range calcs {
		if c.LotID != lotID {
			continue
		}
		for _, pq := range c.Products {
			perProduct[pq.ProductID] = perProduct[pq.ProductID].Add(decimal.NewFromFloat(pq.Quantity))
		}
	}

	out := make([]models.ProductRequirement, 0, len(perProduct))
	for _, t := range totals {
		if qty, ok := perProduct[t.ProductID]; ok {
			t.Quantity = qty.InexactFloat64()
			out = append(out, t)
		}
	}
	return out
}
