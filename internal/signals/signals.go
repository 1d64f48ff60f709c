// Package signals derives year-over-year trend signals from a parcel's
// snapshot history. Everything here is a pure function of the history slice;
// the only I/O is the caller's initial read.
package signals

import (
	"sort"
	"time"

	"github.com/parcelscope/api/internal/models"
)

// Signals holds the derived trend values for one parcel.
// LandValueYoY is nil when no snapshot qualifies as the 12-month-prior
// comparison point; nil and 0 are different answers (0 is a real YoY value).
type Signals struct {
	LandValueYoY *float64
	Current      *models.HistorySnapshot
	Prior        *models.HistorySnapshot
	UseChange    bool
}

// priorTolerance is how far either side of "exactly 12 months earlier" a
// snapshot may fall and still count as the comparison point.
const priorToleranceMonths = 1

// Compute derives signals from a parcel's snapshot history. The history may
// arrive in any order; it is sorted most-recent-first internally. The prior
// snapshot is the one closest to current.date - 12 months, accepted only
// within a ±1 month window.
func Compute(history []models.HistorySnapshot) Signals {
	if len(history) == 0 {
		return Signals{}
	}

	sorted := make([]models.HistorySnapshot, len(history))
	copy(sorted, history)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SnapshotDate.After(sorted[j].SnapshotDate)
	})

	current := &sorted[0]
	prior := findPrior(sorted, current.SnapshotDate)

	sig := Signals{Current: current, Prior: prior}
	if prior == nil {
		return sig
	}

	sig.UseChange = useCode(current) != useCode(prior)

	if current.LandValue != nil && prior.LandValue != nil && *prior.LandValue > 0 {
		yoy := (*current.LandValue - *prior.LandValue) / *prior.LandValue
		sig.LandValueYoY = &yoy
	}

	return sig
}

// findPrior locates the snapshot closest to target = currentDate - 12 months
// within the tolerance window. Returns nil when none qualifies.
func findPrior(sorted []models.HistorySnapshot, currentDate time.Time) *models.HistorySnapshot {
	target := currentDate.AddDate(-1, 0, 0)
	earliest := target.AddDate(0, -priorToleranceMonths, 0)
	latest := target.AddDate(0, priorToleranceMonths, 0)

	var best *models.HistorySnapshot
	var bestDistance time.Duration

	for i := 1; i < len(sorted); i++ {
		d := sorted[i].SnapshotDate
		if d.Before(earliest) || d.After(latest) {
			continue
		}
		distance := absDuration(d.Sub(target))
		if best == nil || distance < bestDistance {
			best = &sorted[i]
			bestDistance = distance
		}
	}

	return best
}

func useCode(s *models.HistorySnapshot) string {
	if s.UseCode == nil {
		return ""
	}
	return *s.UseCode
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
