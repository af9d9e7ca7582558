package models

// ContainerSize is the volume in liters of the spray container (caneca) used as dosing basis.
type ContainerSize int

const (
	Container20   ContainerSize = 20
	Container200  ContainerSize = 200
	Container500  ContainerSize = 500
	Container1000 ContainerSize = 1000
)

// Valid reports whether the size belongs to the supported enumeration.
func (c ContainerSize) Valid() bool {
	switch c {
	case Container20, Container200, Container500, Container1000:
		return true
	default:
		return false
	}
}

// Census is the tree count of a lot broken down by size class.
type Census struct {
	Large  int `bson:"large" json:"large"`
	Medium int `bson:"medium" json:"medium"`
	Small  int `bson:"small" json:"small"`
	Clonal int `bson:"clonal" json:"clonal"`
	Total  int `bson:"total" json:"total"`
}

// Sum adds the four size classes.
func (c Census) Sum() int {
	return c.Large + c.Medium + c.Small + c.Clonal
}

// Consistent reports whether Total matches the size classes.
func (c Census) Consistent() bool {
	return c.Total == c.Sum()
}

// CatalogLot is the lot record owned by the farm catalog.
type CatalogLot struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	SubLotIDs []string `json:"sub_lot_ids,omitempty"`
	AreaHa    float64  `json:"area_ha"`
	Census    Census   `json:"census"`
}

// LotSelection is a lot chosen for one application.
type LotSelection struct {
	LotID     string   `bson:"lot_id" json:"lot_id"`
	Name      string   `bson:"name" json:"name"`
	SubLotIDs []string `bson:"sub_lot_ids,omitempty" json:"sub_lot_ids,omitempty"`
	AreaHa    float64  `bson:"area_ha" json:"area_ha"`
	Census    Census   `bson:"census" json:"census"`

	// Spray and drench only.
	CalibrationPerTree float64       `bson:"calibration_per_tree,omitempty" json:"calibration_per_tree,omitempty"`
	ContainerSize      ContainerSize `bson:"container_size,omitempty" json:"container_size,omitempty"`
}
