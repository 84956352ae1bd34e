package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validOrder() *Order {
	return &Order{
		CustomerName:    "Karim",
		CustomerPhone:   "01700000000",
		CustomerAddress: "Mirpur 10, Dhaka",
		Items: []OrderItem{
			{Name: "Panjabi", Quantity: 2, UnitPrice: 1250.5},
			{Name: "Cap", Quantity: 1, UnitPrice: 199.99},
		},
	}
}

func TestOrder_ComputeTotal(t *testing.T) {
	assert.Equal(t, 2700.99, validOrder().ComputeTotal())
	assert.Equal(t, 0.0, (&Order{}).ComputeTotal())
}

func TestOrder_Validate(t *testing.T) {
	assert.NoError(t, validOrder().Validate())

	tests := []struct {
		name   string
		mutate func(o *Order)
	}{
		{"missing name", func(o *Order) { o.CustomerName = " " }},
		{"missing phone", func(o *Order) { o.CustomerPhone = "" }},
		{"missing address", func(o *Order) { o.CustomerAddress = "" }},
		{"no items", func(o *Order) { o.Items = nil }},
		{"zero quantity", func(o *Order) { o.Items[0].Quantity = 0 }},
		{"negative price", func(o *Order) { o.Items[1].UnitPrice = -1 }},
		{"unnamed item", func(o *Order) { o.Items[0].Name = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOrder()
			tt.mutate(o)
			assert.ErrorIs(t, o.Validate(), ErrInvalidOrder)
		})
	}
}
