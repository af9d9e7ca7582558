package models

// ProductQuantity is the quantity of one product required by a lot.
type ProductQuantity struct {
	ProductID string  `bson:"product_id" json:"product_id"`
	Quantity  float64 `bson:"quantity" json:"quantity"`
}

// SprayFigures are the per-lot outputs of the spray/drench formula.
type SprayFigures struct {
	MixtureVolume  float64 `bson:"mixture_volume" json:"mixture_volume"`
	ContainerCount float64 `bson:"container_count" json:"container_count"`
}

// FertilizationFigures are the per-lot outputs of the fertilization formula.
type FertilizationFigures struct {
	TotalMass  float64 `bson:"total_mass" json:"total_mass"`
	LargeMass  float64 `bson:"large_mass" json:"large_mass"`
	MediumMass float64 `bson:"medium_mass" json:"medium_mass"`
	SmallMass  float64 `bson:"small_mass" json:"small_mass"`
	ClonalMass float64 `bson:"clonal_mass" json:"clonal_mass"`
	BagCount   int     `bson:"bag_count" json:"bag_count"`
}

// LotCalculation is the computed output for one lot within one mixture. Exactly one of
// Spray or Fertilization is set, depending on the application type.
type LotCalculation struct {
	LotID         string                `bson:"lot_id" json:"lot_id"`
	LotName       string                `bson:"lot_name" json:"lot_name"`
	MixtureID     string                `bson:"mixture_id" json:"mixture_id"`
	TotalTrees    int                   `bson:"total_trees" json:"total_trees"`
	Spray         *SprayFigures         `bson:"spray,omitempty" json:"spray,omitempty"`
	Fertilization *FertilizationFigures `bson:"fertilization,omitempty" json:"fertilization,omitempty"`
	Products      []ProductQuantity     `bson:"products" json:"products"`
}
