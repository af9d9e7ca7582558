package models

import "time"

// DailyMovement is one recorded field consumption event. Movements are immutable; they
// can only be deleted.
type DailyMovement struct {
	ID            string    `bson:"_id" json:"id"`
	ApplicationID string    `bson:"application_id" json:"application_id"`
	Date          time.Time `bson:"date" json:"date"`
	LotID         string    `bson:"lot_id" json:"lot_id"`
	ProductID     string    `bson:"product_id" json:"product_id"`
	ProductName   string    `bson:"product_name" json:"product_name"`
	Unit          string    `bson:"unit" json:"unit"`
	Quantity      float64   `bson:"quantity" json:"quantity"`
	// UnitCost is the product price observed when the movement was recorded.
	UnitCost    float64   `bson:"unit_cost" json:"unit_cost"`
	Responsible string    `bson:"responsible" json:"responsible"`
	Note        string    `bson:"note,omitempty" json:"note,omitempty"`
	Containers  *float64  `bson:"containers,omitempty" json:"containers,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}
