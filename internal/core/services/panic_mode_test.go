package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPanicMode_EnableDisable(t *testing.T) {
	p := NewPanicMode()
	assert.False(t, p.IsActive())

	p.Enable("provider outage", "ops@shop")
	status := p.Status()
	assert.True(t, status.Active)
	assert.Equal(t, "provider outage", status.Reason)
	assert.Equal(t, "ops@shop", status.ActivatedBy)
	assert.False(t, status.ActivatedAt.IsZero())

	p.Disable("ops@shop")
	assert.False(t, p.IsActive())
	assert.Empty(t, p.Status().Reason)
}

func TestPanicMode_NilIsInactive(t *testing.T) {
	var p *PanicMode
	assert.False(t, p.IsActive())
}

func TestPanicMode_DisableWhenInactive(t *testing.T) {
	p := NewPanicMode()
	assert.NotPanics(t, func() { p.Disable("nobody") })
	assert.False(t, p.IsActive())
}
