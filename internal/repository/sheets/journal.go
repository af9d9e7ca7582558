package sheets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/orchard/internal/domain/models"
)

const journalDateLayout = "2006-01-02"

// MovementJournal appends every recorded movement to the field log sheet so the farm
// team keeps a readable copy next to the catalog.
type MovementJournal struct {
	repo       Repository
	sheetRange string
	logger     *zap.Logger
}

// NewMovementJournal builds a journal writing to the given range.
func NewMovementJournal(repo Repository, sheetRange string, logger *zap.Logger) *MovementJournal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MovementJournal{repo: repo, sheetRange: sheetRange, logger: logger}
}

// LogMovement appends one row: fecha, aplicación, lote, producto id, producto, cantidad,
// unidad, costo unitario, responsable, canecas, nota.
func (j *MovementJournal) LogMovement(ctx context.Context, appName string, mv models.DailyMovement) error {
	var containers interface{} = ""
	if mv.Containers != nil {
		containers = *mv.Containers
	}

	row := []interface{}{
		mv.Date.Format(journalDateLayout),
		appName,
		mv.LotID,
		mv.ProductID,
		mv.ProductName,
		mv.Quantity,
		mv.Unit,
		mv.UnitCost,
		mv.Responsible,
		containers,
		mv.Note,
	}

	if err := j.repo.WriteRow(ctx, j.sheetRange, row); err != nil {
		return fmt.Errorf("log movement %s: %w", mv.ID, err)
	}
	j.logger.Debug("movement mirrored", zap.String("movement_id", mv.ID))
	return nil
}
