package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"commerce-agent/internal/core/domain"
)

func floatPtr(v float64) *float64 { return &v }

func TestBuildSystemPrompt_NilConfig(t *testing.T) {
	assert.Equal(t, defaultPersona, BuildSystemPrompt(nil))
}

func TestBuildSystemPrompt_Minimal(t *testing.T) {
	prompt := BuildSystemPrompt(&domain.PageConfig{Language: "en"})

	assert.True(t, strings.HasPrefix(prompt, preambleEnglish))
	assert.Contains(t, prompt, "Rules:\n1. Never invent products")
	assert.NotContains(t, prompt, "Selling rules:")
	assert.NotContains(t, prompt, "Payment options:")
	assert.NotContains(t, prompt, "Delivery:")
}

func TestBuildSystemPrompt_BengaliPreamble(t *testing.T) {
	prompt := BuildSystemPrompt(&domain.PageConfig{Language: "bn", BusinessDescription: "শাড়ির দোকান"})

	assert.True(t, strings.HasPrefix(prompt, preambleBengali))
	assert.Contains(t, prompt, "Business: শাড়ির দোকান")
}

func TestBuildSystemPrompt_SectionOrder(t *testing.T) {
	cfg := &domain.PageConfig{
		Language:           "en",
		ProductSummary:     "Cotton shirts",
		CustomInstructions: "Mention the Eid sale.",
		Selling: domain.SellingRules{
			BargainingEnabled:  true,
			MaxDiscountPercent: floatPtr(10),
			TakeOrders:         true,
		},
		Behavior: domain.BehaviorRules{ShortReplies: true},
		Payment:  domain.PaymentInfo{CashOnDelivery: true, BkashNumber: "01711111111"},
		Delivery: domain.DeliveryInfo{InsideDhakaCharge: floatPtr(60), OutsideDhakaCharge: floatPtr(120)},
	}

	prompt := BuildSystemPrompt(cfg)

	order := []string{"Products: Cotton shirts", "Rules:", "Selling rules:", "Behavior rules:", "Payment options:", "Delivery:", "Additional instructions:"}
	last := -1
	for _, marker := range order {
		idx := strings.Index(prompt, marker)
		assert.Greater(t, idx, last, "section %q out of order", marker)
		last = idx
	}

	assert.Contains(t, prompt, "Never offer more than 10% discount.")
	assert.Contains(t, prompt, OrderBlockStart)
	assert.Contains(t, prompt, "bKash: 01711111111")
	assert.Contains(t, prompt, "Inside Dhaka: 60 BDT")
	assert.Contains(t, prompt, "Outside Dhaka: 120 BDT")
	assert.True(t, strings.HasSuffix(prompt, "Mention the Eid sale."))
}

func TestBuildSystemPrompt_Deterministic(t *testing.T) {
	cfg := &domain.PageConfig{
		Language: "en",
		Payment:  domain.PaymentInfo{NagadNumber: "01822222222"},
		Delivery: domain.DeliveryInfo{EstimatedDays: "2-3 days"},
	}
	assert.Equal(t, BuildSystemPrompt(cfg), BuildSystemPrompt(cfg))
}
