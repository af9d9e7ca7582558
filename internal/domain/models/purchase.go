package models

// Product is the catalog view of an agrochemical input.
type Product struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Unit          string `json:"unit"`
	PhysicalState string `json:"physical_state"`
	// Presentation is the free-text commercial presentation, e.g. "Bulto 25kg".
	Presentation string `json:"presentation"`
	// PresentationSize is the structured presentation size; zero when not recorded.
	PresentationSize float64 `json:"presentation_size,omitempty"`
	UnitPrice        float64 `json:"unit_price"`
	Stock            float64 `json:"stock"`
}

// PurchaseAlert tags a purchase list line.
type PurchaseAlert string

const (
	PurchaseAlertNoPrice PurchaseAlert = "no_price"
	PurchaseAlertNoStock PurchaseAlert = "no_stock"
	PurchaseAlertNormal  PurchaseAlert = "normal"
)

// PurchaseListItem is one product line of the purchase list.
type PurchaseListItem struct {
	ProductID        string        `bson:"product_id" json:"product_id"`
	ProductName      string        `bson:"product_name" json:"product_name"`
	Unit             string        `bson:"unit" json:"unit"`
	Stock            float64       `bson:"stock" json:"stock"`
	Required         float64       `bson:"required" json:"required"`
	Shortfall        float64       `bson:"shortfall" json:"shortfall"`
	Presentation     string        `bson:"presentation" json:"presentation"`
	PresentationSize float64       `bson:"presentation_size" json:"presentation_size"`
	PurchaseUnits    int64         `bson:"purchase_units" json:"purchase_units"`
	UnitPrice        float64       `bson:"unit_price" json:"unit_price"`
	EstimatedCost    float64       `bson:"estimated_cost" json:"estimated_cost"`
	Alert            PurchaseAlert `bson:"alert" json:"alert"`
}

// PurchaseList is the shortfall list of an application against current stock.
type PurchaseList struct {
	Items        []PurchaseListItem `bson:"items" json:"items"`
	TotalCost    float64            `bson:"total_cost" json:"total_cost"`
	NoPriceCount int                `bson:"no_price_count" json:"no_price_count"`
	NoStockCount int                `bson:"no_stock_count" json:"no_stock_count"`
	Warnings     []string           `bson:"warnings,omitempty" json:"warnings,omitempty"`
}

// Shortfalls returns the lines that cannot be covered by current stock.
func (l PurchaseList) Shortfalls() []PurchaseListItem {
	var out []PurchaseListItem
	for _, item := range l.Items {
		if item.Shortfall > 0 {
			out = append(out, item)
		}
	}
	return out
}
