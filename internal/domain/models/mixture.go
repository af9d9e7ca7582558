package models

// DoseUnit is the fine unit a spray dose is expressed in, per container.
type DoseUnit string

const (
	DoseUnitCC    DoseUnit = "cc"
	DoseUnitGrams DoseUnit = "g"
)

// Valid reports whether the unit is supported.
func (u DoseUnit) Valid() bool {
	return u == DoseUnitCC || u == DoseUnitGrams
}

// Dose is the dosing rule of a product inside a mixture. It is either a SprayDose or a
// FertilizationDose, selected by the application type.
type Dose interface {
	Kind() DoseKind
}

// DoseKind discriminates Dose variants.
type DoseKind string

const (
	DoseKindSpray         DoseKind = "spray"
	DoseKindFertilization DoseKind = "fertilization"
)

// SprayDose is a dose per container, used by spray and drench applications.
type SprayDose struct {
	PerContainer float64  `json:"per_container"`
	Unit         DoseUnit `json:"unit"`
}

// Kind implements Dose.
func (SprayDose) Kind() DoseKind { return DoseKindSpray }

// FertilizationDose holds one per-tree dose for each size class, in the stocked unit.
type FertilizationDose struct {
	Large  float64 `json:"large"`
	Medium float64 `json:"medium"`
	Small  float64 `json:"small"`
	Clonal float64 `json:"clonal"`
}

// Kind implements Dose.
func (FertilizationDose) Kind() DoseKind { return DoseKindFertilization }

// Empty reports whether every size class dose is zero.
func (d FertilizationDose) Empty() bool {
	return d.Large == 0 && d.Medium == 0 && d.Small == 0 && d.Clonal == 0
}

// ProductInMixture is a product reference together with its dosing rule.
type ProductInMixture struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Unit        string `json:"unit"`
	Dose        Dose   `json:"dose"`
	// BagSize is the commercial presentation size, zero when unknown.
	BagSize float64 `json:"bag_size,omitempty"`
	// RequiredQuantity is derived by the dosage calculator, never authored.
	RequiredQuantity float64 `json:"required_quantity"`
}

// Mixture (mezcla) is a named, ordered group of products assigned to lots.
type Mixture struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Products []ProductInMixture `json:"products"`
	LotIDs   []string           `json:"lot_ids"`
}

// ProductRequirement is the total quantity of a product needed by an application.
type ProductRequirement struct {
	ProductID   string  `bson:"product_id" json:"product_id"`
	ProductName string  `bson:"product_name" json:"product_name"`
	Unit        string  `bson:"unit" json:"unit"`
	Quantity    float64 `bson:"quantity" json:"quantity"`
}
