package applications

import (
	"time"

	"github.com/mamadbah2/orchard/internal/domain/models"
)

// LotInput selects a catalog lot and, for spray and drench, its calibration.
type LotInput struct {
	LotID              string  `json:"lot_id" binding:"required"`
	CalibrationPerTree float64 `json:"calibration_per_tree"`
	ContainerSize      int     `json:"container_size"`
}

// ProductInput is a product and its dose as sent by a client. The application type
// decides which fields are read.
type ProductInput struct {
	ProductID string `json:"product_id" binding:"required"`

	DosePerContainer float64         `json:"dose_per_container"`
	DoseUnit         models.DoseUnit `json:"dose_unit"`

	DoseLarge  float64 `json:"dose_large"`
	DoseMedium float64 `json:"dose_medium"`
	DoseSmall  float64 `json:"dose_small"`
	DoseClonal float64 `json:"dose_clonal"`
}

func (p ProductInput) dose(appType models.ApplicationType) models.Dose {
	if appType.UsesContainers() {
		return models.SprayDose{PerContainer: p.DosePerContainer, Unit: p.DoseUnit}
	}
	return models.FertilizationDose{Large: p.DoseLarge, Medium: p.DoseMedium, Small: p.DoseSmall, Clonal: p.DoseClonal}
}

// MixtureInput describes one mezcla.
type MixtureInput struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Products []ProductInput `json:"products"`
	LotIDs   []string       `json:"lot_ids"`
}

// PlanInput replaces the lots and mixtures of an application.
type PlanInput struct {
	Lots     []LotInput     `json:"lots"`
	Mixtures []MixtureInput `json:"mixtures"`
}

// CreateInput plans a new application.
type CreateInput struct {
	Name    string                 `json:"name" binding:"required"`
	Type    models.ApplicationType `json:"type" binding:"required"`
	Targets []string               `json:"targets"`
	PlanInput
}

// StartInput starts execution.
type StartInput struct {
	StartDate             *time.Time `json:"start_date"`
	AcknowledgeShortfalls bool       `json:"acknowledge_shortfalls"`
}

// MovementInput records field consumption.
type MovementInput struct {
	Date        *time.Time `json:"date"`
	LotID       string     `json:"lot_id" binding:"required"`
	ProductID   string     `json:"product_id" binding:"required"`
	Quantity    float64    `json:"quantity"`
	Responsible string     `json:"responsible"`
	Note        string     `json:"note"`
	Containers  *float64   `json:"containers"`
}

// CloseInput carries the labor allocation of a closure.
type CloseInput struct {
	Labor        models.LaborAllocation `json:"labor"`
	LaborDayCost float64                `json:"labor_day_cost"`
	Observations string                 `json:"observations"`
}

// ApproveInput records managerial approval.
type ApproveInput struct {
	Approver string `json:"approver" binding:"required"`
	Note     string `json:"note"`
}
