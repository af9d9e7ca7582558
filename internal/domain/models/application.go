package models

import "time"

// ApplicationType enumerates the supported field application kinds.
type ApplicationType string

const (
	ApplicationSpray         ApplicationType = "fumigacion"
	ApplicationDrench        ApplicationType = "drench"
	ApplicationFertilization ApplicationType = "fertilizacion"
)

// Valid reports whether the type is supported.
func (t ApplicationType) Valid() bool {
	switch t {
	case ApplicationSpray, ApplicationDrench, ApplicationFertilization:
		return true
	default:
		return false
	}
}

// UsesContainers reports whether dosing is per container (spray and drench).
func (t ApplicationType) UsesContainers() bool {
	return t == ApplicationSpray || t == ApplicationDrench
}

// Estado is the lifecycle state of an application.
type Estado string

const (
	EstadoCalculada           Estado = "Calculada"
	EstadoEnEjecucion         Estado = "En ejecución"
	EstadoPendienteAprobacion Estado = "Pendiente de Aprobación"
	EstadoCerrada             Estado = "Cerrada"
)

// Application is the aggregate root of a planned field application.
type Application struct {
	ID      string          `bson:"_id" json:"id"`
	Name    string          `bson:"name" json:"name"`
	Type    ApplicationType `bson:"type" json:"type"`
	Estado  Estado          `bson:"estado" json:"estado"`
	Targets []string        `bson:"targets,omitempty" json:"targets,omitempty"`

	Lots []LotSelection `bson:"lots" json:"lots"`
	// Mixtures carry the Dose union and are persisted through a storage document.
	Mixtures     []Mixture        `bson:"-" json:"mixtures"`
	Calculations []LotCalculation `bson:"calculations" json:"calculations"`
	PurchaseList PurchaseList     `bson:"purchase_list" json:"purchase_list"`

	StartDate         *time.Time `bson:"start_date,omitempty" json:"start_date,omitempty"`
	StockAcknowledged bool       `bson:"stock_acknowledged" json:"stock_acknowledged"`
	Closure           *Closure   `bson:"closure,omitempty" json:"closure,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Lot returns the selection for the given lot id.
func (a Application) Lot(id string) (LotSelection, bool) {
	for _, lot := range a.Lots {
		if lot.LotID == id {
			return lot, true
		}
	}
	return LotSelection{}, false
}
