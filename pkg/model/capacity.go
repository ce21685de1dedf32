package model

// Capacity is the configured total fleet size for one category.
// It is configured externally and read-only to this service.
type Capacity struct {
	CarType  CarType `json:"category" bson:"car_type"`
	Quantity int64   `json:"quantity" bson:"quantity"`
}
