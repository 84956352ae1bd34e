package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidOrder wraps every order validation failure
var ErrInvalidOrder = errors.New("invalid order")

// OrderStatus is the order lifecycle state
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderItem is one line of an order
type OrderItem struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Order is created when the agent confirms a purchase with the customer
type Order struct {
	ID              int64       `json:"id" db:"id"`
	OwnerID         string      `json:"owner_id" db:"owner_id"`
	PageID          string      `json:"page_id" db:"page_id"`
	ConversationID  int64       `json:"conversation_id" db:"conversation_id"`
	CustomerName    string      `json:"customer_name" db:"customer_name"`
	CustomerPhone   string      `json:"customer_phone" db:"customer_phone"`
	CustomerAddress string      `json:"customer_address" db:"customer_address"`
	Items           []OrderItem `json:"items" db:"items"`
	Total           float64     `json:"total" db:"total"`
	Status          OrderStatus `json:"status" db:"status"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
}

// ComputeTotal sums quantity × unit price, rounded to 2 decimals
func (o *Order) ComputeTotal() float64 {
	var total float64
	for _, it := range o.Items {
		total += float64(it.Quantity) * it.UnitPrice
	}
	return math.Round(total*100) / 100
}

// Validate checks the customer fields and line items
func (o *Order) Validate() error {
	if strings.TrimSpace(o.CustomerName) == "" {
		return fmt.Errorf("%w: customer name is required", ErrInvalidOrder)
	}
	if strings.TrimSpace(o.CustomerPhone) == "" {
		return fmt.Errorf("%w: customer phone is required", ErrInvalidOrder)
	}
	if strings.TrimSpace(o.CustomerAddress) == "" {
		return fmt.Errorf("%w: customer address is required", ErrInvalidOrder)
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrInvalidOrder)
	}
	for i, it := range o.Items {
		if strings.TrimSpace(it.Name) == "" || it.Quantity <= 0 || it.UnitPrice < 0 {
			return fmt.Errorf("%w: item %d is malformed", ErrInvalidOrder, i+1)
		}
	}
	return nil
}
