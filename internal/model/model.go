// Package model defines domain entities shared by the store, services and wire layer.
package model

import "time"

// Event is a single point-in-time sale. Immutable once created.
type Event struct {
	Product   string
	Quantity  int32   // units sold, >= 0
	Price     float64 // unit price, >= 0
	Timestamp int64   // epoch milliseconds, assigned at creation
}

// NewEvent builds an Event stamped with the current time.
func NewEvent(product string, quantity int32, price float64) Event {
	return Event{
		Product:   product,
		Quantity:  quantity,
		Price:     price,
		Timestamp: time.Now().UnixMilli(),
	}
}

// TotalValue is quantity times unit price.
func (e Event) TotalValue() float64 {
	return float64(e.Quantity) * e.Price
}

// User is a registered account. The hash is SHA-256 over the UTF-8 password.
type User struct {
	Username     string
	PasswordHash []byte
}
