package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a single food-delivery order as it appears in the order feed.
// Orders are immutable once loaded.
type Order struct {
	OrderID         string          `json:"order_id"`
	CustomerID      string          `json:"customer_id"`
	RestaurantName  string          `json:"restaurant_name"` // raw, as delivered by the platform
	CuisineType     string          `json:"cuisine_type"`
	Cost            decimal.Decimal `json:"cost"`
	DayOfWeek       string          `json:"day_of_the_week"`
	Rating          *int            `json:"rating,omitempty"` // nil when "Not given"
	PrepMinutes     int             `json:"food_preparation_time"`
	DeliveryMinutes int             `json:"delivery_time"`
	OrderDate       *time.Time      `json:"order_date,omitempty"`
}

// OrderSet is the loaded order table. HasDates records whether the source
// carried an order_date column at all; without it every order falls inside
// any date window.
type OrderSet struct {
	Orders   []Order `json:"orders"`
	HasDates bool    `json:"has_dates"`
}

// Len returns the number of orders.
func (s *OrderSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Orders)
}
