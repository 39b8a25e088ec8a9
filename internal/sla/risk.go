package sla

import (
	"math"
	"sort"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// ProximityScore is 100 minus the larger of the two consumed percentages,
// floored at 0. Lower scores are closer to breach.
func ProximityScore(responsePercent, resolutionPercent float64) float64 {
	score := math.Min(100-responsePercent, 100-resolutionPercent)
	if score < 0 {
		return 0
	}
	return round2(score)
}

// SortByRisk orders results closest-to-breach first. Equal scores keep
// their incoming order; results without a policy sort last.
func SortByRisk(results []domain.ComplianceResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.HasSLA != b.HasSLA {
			return a.HasSLA
		}
		return a.ProximityScore < b.ProximityScore
	})
}

// SortWarningsByRisk orders warnings by the share of target consumed, highest first.
func SortWarningsByRisk(warnings []domain.WarningRecord) {
	sort.SliceStable(warnings, func(i, j int) bool {
		return warnings[i].Percentage > warnings[j].Percentage
	})
}

// SortBreachesByRisk orders breaches by how far past target they run.
// Every breach scores zero proximity, so the larger consumed percentage ranks.
func SortBreachesByRisk(breaches []domain.BreachRecord) {
	overrun := func(b domain.BreachRecord) float64 {
		return math.Max(b.Result.ResponsePercent, b.Result.ResolutionPercent)
	}
	sort.SliceStable(breaches, func(i, j int) bool {
		return overrun(breaches[i]) > overrun(breaches[j])
	})
}
