// Package scoring folds trend signals and static parcel attributes into a
// bounded composite investment score. The model is an explicit, auditable
// heuristic: additive, order-independent weights with clamping as the only
// nonlinearity.
package scoring

import (
	"math"
	"time"

	"github.com/parcelscope/api/internal/models"
	"github.com/parcelscope/api/internal/signals"
)

// ModelVersion tags every score row with the heuristic that produced it.
const ModelVersion = "heuristic_v1"

// Heuristic weights. All additive; the result is clamped to [0, maxProbability].
const (
	baseProbability      = 0.10
	weightHighGrowth     = 0.20 // YoY > 0.30
	weightVeryHighGrowth = 0.20 // YoY > 0.50, on top of weightHighGrowth
	weightUseChange      = 0.30
	weightLongTenure     = 0.10
	weightCorporateOwner = 0.10
	maxProbability       = 0.95

	highGrowthThreshold     = 0.30
	veryHighGrowthThreshold = 0.50
	longTenureYears         = 20

	probabilityShare    = 0.6
	undervaluationShare = 0.4
)

// Input is everything the engine needs to score one parcel.
// PeerMedianPerAcre is the median land value per acre across the parcel's
// jurisdiction; zero disables the undervaluation term.
type Input struct {
	Now               time.Time
	Parcel            *models.Parcel
	Signals           signals.Signals
	PeerMedianPerAcre float64
}

// Score computes the full score row for one parcel. The result is written as
// a single atomic unit; callers never persist pieces of it separately.
func Score(in Input) models.Score {
	yoy := in.Signals.LandValueYoY
	tenure := tenureYears(in.Parcel.DeedDate, in.Now)
	corporate := in.Parcel.OwnerType != nil && *in.Parcel.OwnerType == models.OwnerTypeCorporate
	perAcre := landValuePerAcre(in.Parcel)

	ex := models.Explanations{
		HighGrowth:     yoy != nil && *yoy > highGrowthThreshold,
		VeryHighGrowth: yoy != nil && *yoy > veryHighGrowthThreshold,
		UseChange:      in.Signals.UseChange,
		LongTenure:     tenure > longTenureYears,
		CorporateOwner: corporate,
		TenureYears:    tenure,
		LandValPerAcre: perAcre,
		PeerMedianAcre: in.PeerMedianPerAcre,
	}

	probability := baseProbability
	if ex.HighGrowth {
		probability += weightHighGrowth
	}
	if ex.VeryHighGrowth {
		probability += weightVeryHighGrowth
	}
	if ex.UseChange {
		probability += weightUseChange
	}
	if ex.LongTenure {
		probability += weightLongTenure
	}
	if ex.CorporateOwner {
		probability += weightCorporateOwner
	}
	probability = clamp(probability, 0, maxProbability)

	// Negative undervaluation means the parcel is priced above its peers;
	// it is preserved as negative in the stored percentage and only floored
	// inside the composite.
	var undervaluation float64
	if in.PeerMedianPerAcre > 0 {
		undervaluation = (in.PeerMedianPerAcre - perAcre) / in.PeerMedianPerAcre
	}

	investment := clamp(
		probabilityShare*probability+undervaluationShare*math.Max(0, undervaluation),
		0, 1)

	return models.Score{
		ParcelID:            in.Parcel.ID,
		RezoningProbability: probability,
		InvestmentScore:     investment,
		YoYChange:           yoy,
		UndervaluationPct:   undervaluation,
		Explanations:        ex,
		ModelVersion:        ModelVersion,
		ComputedAt:          in.Now,
	}
}

// tenureYears is the whole-year difference between now and the deed date,
// zero when the deed date is unknown.
func tenureYears(deedDate *time.Time, now time.Time) int {
	if deedDate == nil {
		return 0
	}
	return now.Year() - deedDate.Year()
}

// landValuePerAcre is zero when either value or acreage is missing.
func landValuePerAcre(p *models.Parcel) float64 {
	if p.LandValue == nil || p.Acreage == nil || *p.Acreage <= 0 {
		return 0
	}
	return *p.LandValue / *p.Acreage
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
