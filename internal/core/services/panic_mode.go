// Package services contains panic mode management
package services

import (
	"log/slog"
	"sync"
	"time"
)

// PanicMode is the operator kill switch that pauses every AI reply
type PanicMode struct {
	mu          sync.RWMutex
	active      bool
	activatedBy string
	activatedAt time.Time
	reason      string
}

// PanicStatus is a snapshot of the switch
type PanicStatus struct {
	Active      bool      `json:"active"`
	Reason      string    `json:"reason,omitempty"`
	ActivatedBy string    `json:"activated_by,omitempty"`
	ActivatedAt time.Time `json:"activated_at,omitempty"`
}

// NewPanicMode creates an inactive switch
func NewPanicMode() *PanicMode {
	return &PanicMode{}
}

// IsActive returns whether panic mode is currently active
func (p *PanicMode) IsActive() bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

// Enable activates panic mode (pauses AI)
func (p *PanicMode) Enable(reason, activatedBy string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active = true
	p.reason = reason
	p.activatedBy = activatedBy
	p.activatedAt = time.Now()

	slog.Warn("🚨 PANIC MODE ACTIVATED",
		"reason", reason,
		"activated_by", activatedBy,
	)
}

// Disable deactivates panic mode (resumes AI)
func (p *PanicMode) Disable(deactivatedBy string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return
	}
	duration := time.Since(p.activatedAt)
	p.active = false
	p.reason = ""

	slog.Info("✅ PANIC MODE DEACTIVATED",
		"deactivated_by", deactivatedBy,
		"duration", duration,
	)
}

// Status returns current panic mode status
func (p *PanicMode) Status() PanicStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PanicStatus{
		Active:      p.active,
		Reason:      p.reason,
		ActivatedBy: p.activatedBy,
		ActivatedAt: p.activatedAt,
	}
}
