package model

import "go.mongodb.org/mongo-driver/bson/primitive"

// Product is one user's subscription to watch one Amazon catalog item.
// TargetPrice is fixed at creation; LowestPrice only ever decreases while
// the subscription is active. Once IsActive flips to false the record is
// terminal and is never scanned again.
type Product struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       string             `bson:"user_id" json:"user_id"`
	ASIN         string             `bson:"asin" json:"asin"`
	URL          string             `bson:"amazon_url" json:"amazon_url"`
	Name         string             `bson:"product_name" json:"product_name"`
	ImageURL     string             `bson:"image_url" json:"image_url"`
	CurrentPrice float64            `bson:"current_price" json:"current_price"`
	TargetPrice  float64            `bson:"target_price" json:"target_price"`
	LowestPrice  float64            `bson:"lowest_price" json:"lowest_price"`
	IsActive     bool               `bson:"is_active" json:"is_active"`
	CreatedAt    primitive.DateTime `bson:"created_at" json:"created_at"`
}

const (
	AvailabilityInStock    = "In Stock"
	AvailabilityOutOfStock = "Out of Stock"
)

// Observation is the result of scraping a product page once. It is produced
// fresh on every scan and never persisted directly.
type Observation struct {
	Name         string  `json:"product_name"`
	Price        float64 `json:"current_price"`
	ImageURL     string  `json:"image_url"`
	ASIN         string  `json:"asin"`
	URL          string  `json:"amazon_url"`
	Availability string  `json:"availability"`
}
