package models

import (
	"time"
)

// Explanations carries the named contributing factors behind a score so the
// heuristic stays auditable alongside the numbers it produced.
type Explanations struct {
	HighGrowth      bool    `json:"highGrowth"`
	VeryHighGrowth  bool    `json:"veryHighGrowth"`
	UseChange       bool    `json:"useChange"`
	LongTenure      bool    `json:"longTenure"`
	CorporateOwner  bool    `json:"corporateOwner"`
	TenureYears     int     `json:"tenureYears"`
	LandValPerAcre  float64 `json:"landValPerAcre"`
	PeerMedianAcre  float64 `json:"peerMedianPerAcre"`
}

// Score is the 1:1 derived record per parcel. Re-scoring replaces the whole
// row atomically; it is never partially updated. YoYChange is nil when the
// parcel has no qualifying snapshot ~12 months prior (nil and 0 mean
// different things).
type Score struct {
	ComputedAt          time.Time    `json:"computedAt"`
	YoYChange           *float64     `json:"yoyChange,omitempty"`
	Explanations        Explanations `json:"explanations"`
	ModelVersion        string       `json:"modelVersion"`
	RezoningProbability float64      `json:"rezoningProbability"`
	InvestmentScore     float64      `json:"investmentScore"`
	UndervaluationPct   float64      `json:"undervaluationPct"`
	ParcelID            int64        `json:"parcelId"`
}
