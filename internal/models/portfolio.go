package models

import "time"

// DistributionDelta is one coin's distance from its target worth,
// recomputed every cycle and never persisted.
type DistributionDelta struct {
	Name       string
	Target     float64
	Deviation  float64 // current worth - target worth, in quote currency
	Percentage float64 // deviation as percent of target
}

// CoinRemoval is the grace-period entry for a held coin that fell out of
// the market-cap universe. At most one entry per coin.
type CoinRemoval struct {
	Coin    string    `json:"coin"`
	Execute time.Time `json:"execute"`
}

// PortfolioATH is the trailing-stop state machine. allTimeHigh only ever
// grows until the whole struct resets after the resume time.
type PortfolioATH struct {
	Active      bool      `json:"active"`
	AllTimeHigh float64   `json:"allTimeHigh"`
	Investment  float64   `json:"investment"`
	Resume      time.Time `json:"resume"`
	Triggered   bool      `json:"triggered"`
}
