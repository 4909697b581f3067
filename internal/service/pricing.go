package service

import (
	"strings"

	"velora/internal/config"
)

// Pricing holds the unit prices used to estimate cost, in USD.
type Pricing struct {
	EmailPer1000       float64
	LLMDefaultPer1K    float64
	LLMModelsPer1K     map[string]float64
	StoreReadsPer100K  float64
	StoreWritesPer100K float64
	ARPU               float64
}

func PricingFromConfig(cfg *config.Config) Pricing {
	return Pricing{
		EmailPer1000:       cfg.PriceEmailPer1000,
		LLMDefaultPer1K:    cfg.PriceLLMDefaultPer1K,
		LLMModelsPer1K:     cfg.PriceLLMModels,
		StoreReadsPer100K:  cfg.PriceStoreReadsPer100K,
		StoreWritesPer100K: cfg.PriceStoreWritesPer100K,
		ARPU:               cfg.ARPU,
	}
}

func (p Pricing) EmailCost(emails int64) float64 {
	return float64(emails) * p.EmailPer1000 / 1000
}

// LLMPricePer1K returns the per-1K token price for a model. Dated snapshots
// such as gpt-4o-mini-2024-07-18 use the longest configured prefix.
func (p Pricing) LLMPricePer1K(model string) float64 {
	model = strings.ToLower(strings.TrimSpace(model))
	if price, ok := p.LLMModelsPer1K[model]; ok {
		return price
	}
	best, price := 0, p.LLMDefaultPer1K
	for name, v := range p.LLMModelsPer1K {
		if len(name) > best && strings.HasPrefix(model, name+"-") {
			best, price = len(name), v
		}
	}
	return price
}

func (p Pricing) LLMCost(tokens int64, model string) float64 {
	return float64(tokens) * p.LLMPricePer1K(model) / 1000
}

func (p Pricing) StoreCost(reads, writes int64) float64 {
	return float64(reads)*p.StoreReadsPer100K/100_000 + float64(writes)*p.StoreWritesPer100K/100_000
}
