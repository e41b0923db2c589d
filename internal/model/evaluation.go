package model

import "pricepal/internal/misc"

type Evaluation struct {
	CurrentPrice   float64
	LowestPrice    float64
	AlertTriggered bool
}

// Evaluate compares a stored Product against a fresh Observation.
// The current price follows the observation unconditionally, the lowest-seen
// watermark never increases, and the alert fires when the observed price is
// at or below the target. Pure function, no I/O.
func Evaluate(p Product, o Observation) Evaluation {
	return Evaluation{
		CurrentPrice:   o.Price,
		LowestPrice:    misc.Min(p.LowestPrice, o.Price),
		AlertTriggered: o.Price <= p.TargetPrice,
	}
}
