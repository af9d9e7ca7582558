package mongodb

import "github.com/mamadbah2/orchard/internal/domain/models"

// applicationDocument stores mixtures explicitly since the Dose union has no bson form.
type applicationDocument struct {
	models.Application `bson:",inline"`
	Mixtures           []mixtureDocument `bson:"mixtures"`
}

type mixtureDocument struct {
	ID       string            `bson:"id"`
	Name     string            `bson:"name"`
	Products []productDocument `bson:"products"`
	LotIDs   []string          `bson:"lot_ids"`
}

type productDocument struct {
	ProductID        string                     `bson:"product_id"`
	ProductName      string                     `bson:"product_name"`
	Unit             string                     `bson:"unit"`
	DoseKind         models.DoseKind            `bson:"dose_kind"`
	Spray            *sprayDoseDocument         `bson:"spray,omitempty"`
	Fertilization    *fertilizationDoseDocument `bson:"fertilization,omitempty"`
	BagSize          float64                    `bson:"bag_size,omitempty"`
	RequiredQuantity float64                    `bson:"required_quantity"`
}

type sprayDoseDocument struct {
	PerContainer float64         `bson:"per_container"`
	Unit         models.DoseUnit `bson:"unit"`
}

type fertilizationDoseDocument struct {
	Large  float64 `bson:"large"`
	Medium float64 `bson:"medium"`
	Small  float64 `bson:"small"`
	Clonal float64 `bson:"clonal"`
}

func toApplicationDocument(app models.Application) applicationDocument {
	doc := applicationDocument{Application: app, Mixtures: make([]mixtureDocument, 0, len(app.Mixtures))}
	doc.Application.Mixtures = nil

	for _, mix := range app.Mixtures {
		md := mixtureDocument{ID: mix.ID, Name: mix.Name, LotIDs: mix.LotIDs}
		for _, p := range mix.Products {
			pd := productDocument{
				ProductID:        p.ProductID,
				ProductName:      p.ProductName,
				Unit:             p.Unit,
				BagSize:          p.BagSize,
				RequiredQuantity: p.RequiredQuantity,
			}
			switch d := p.Dose.(type) {
			case models.SprayDose:
				pd.DoseKind = models.DoseKindSpray
				pd.Spray = &sprayDoseDocument{PerContainer: d.PerContainer, Unit: d.Unit}
			case models.FertilizationDose:
				pd.DoseKind = models.DoseKindFertilization
				pd.Fertilization = &fertilizationDoseDocument{Large: d.Large, Medium: d.Medium, Small: d.Small, Clonal: d.Clonal}
			}
			md.Products = append(md.Products, pd)
		}
		doc.Mixtures = append(doc.Mixtures, md)
	}
	return doc
}

func (doc applicationDocument) toModel() models.Application {
	app := doc.Application
	app.Mixtures = make([]models.Mixture, 0, len(doc.Mixtures))

	for _, md := range doc.Mixtures {
		mix := models.Mixture{ID: md.ID, Name: md.Name, LotIDs: md.LotIDs}
		for _, pd := range md.Products {
			p := models.ProductInMixture{
				ProductID:        pd.ProductID,
				ProductName:      pd.ProductName,
				Unit:             pd.Unit,
				BagSize:          pd.BagSize,
				RequiredQuantity: pd.RequiredQuantity,
			}
			switch {
			case pd.DoseKind == models.DoseKindSpray && pd.Spray != nil:
				p.Dose = models.SprayDose{PerContainer: pd.Spray.PerContainer, Unit: pd.Spray.Unit}
			case pd.DoseKind == models.DoseKindFertilization && pd.Fertilization != nil:
				f := pd.Fertilization
				p.Dose = models.FertilizationDose{Large: f.Large, Medium: f.Medium, Small: f.Small, Clonal: f.Clonal}
			}
			mix.Products = append(mix.Products, p)
		}
		app.Mixtures = append(app.Mixtures, mix)
	}
	return app
}
