// Package validator computes the diagnosis that drives the orchestrator's
// retry and escalation decisions: given a column's detected problem
// numbers and its expected set, it reports what is missing, duplicated,
// or out of order.
//
// Grounded on the original implementation's validate_problem_sequence and
// suggest_retry_params (original_source/AgentTools/validation.py): the
// same three checks (duplicates via counting, missing via set difference,
// ordering via comparison to a sorted copy) and the same retry-parameter
// nudge (widen the x-offset gate, loosen the confidence floor on missing
// numbers; tighten confidence on duplicates).
package validator

import "sort"

// Status summarizes a diagnosis at a glance.
type Status string

const (
	StatusOK        Status = "ok"
	StatusMissing   Status = "missing"
	StatusDuplicate Status = "duplicate"
	StatusMixed     Status = "mixed"
)

// Diagnosis is the pure output of comparing detected numbers against an
// expected set, per spec.md §4.6.
type Diagnosis struct {
	Status     Status
	Missing    []int
	Duplicates []int
	OutOfOrder bool
}

// ExpectedSet computes {1, ..., max(detected)} clipped to [1, maxProblem].
// When no expected_problem_count is configured, the orchestrator calls it
// with one column's detected numbers, so the inferred set is per column.
func ExpectedSet(detected []int, maxProblem int) []int {
	hi := 0
	for _, n := range detected {
		if n > hi {
			hi = n
		}
	}
	if hi > maxProblem {
		hi = maxProblem
	}
	if hi < 1 {
		return nil
	}
	out := make([]int, hi)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// Diagnose compares detectedInYOrder (the numbers of a column's markers,
// already ordered by ascending bbox.y) against expected, and reports
// missing numbers, duplicates, and whether the y-ordered sequence is
// ascending.
func Diagnose(detectedInYOrder []int, expected []int) Diagnosis {
	expectedSet := make(map[int]bool, len(expected))
	for _, n := range expected {
		expectedSet[n] = true
	}

	counts := make(map[int]int)
	for _, n := range detectedInYOrder {
		counts[n]++
	}

	detectedSet := make(map[int]bool, len(counts))
	for n := range counts {
		detectedSet[n] = true
	}

	var missing []int
	for _, n := range expected {
		if !detectedSet[n] {
			missing = append(missing, n)
		}
	}
	sort.Ints(missing)

	var duplicates []int
	for n, c := range counts {
		if c > 1 {
			duplicates = append(duplicates, n)
		}
	}
	sort.Ints(duplicates)

	outOfOrder := !sort.IntsAreSorted(detectedInYOrder)

	d := Diagnosis{Missing: missing, Duplicates: duplicates, OutOfOrder: outOfOrder}
	switch {
	case len(missing) == 0 && len(duplicates) == 0 && !outOfOrder:
		d.Status = StatusOK
	case len(missing) > 0 && len(duplicates) > 0:
		d.Status = StatusMixed
	case len(missing) > 0:
		d.Status = StatusMissing
	case len(duplicates) > 0:
		d.Status = StatusDuplicate
	default:
		// out-of-order alone, with no missing/duplicate numbers.
		d.Status = StatusMixed
	}
	return d
}

// RetryParams is the subset of the marker parser's Params the stage-1
// internal retry (spec.md §4.5 "Parameter adjustment on gaps") may adjust.
type RetryParams struct {
	MaxMarkerXOffset       int
	MinConfidenceForSource float64
}

const (
	maxXOffsetCeiling = 500
	xOffsetStep       = 50
	confidenceFloor   = 0.2
	confidenceStep    = 0.1
	confidenceDupCeil = 0.7
	confidenceDupStep = 0.1
)

// SuggestRetryParams nudges current towards recovering missing markers
// (wider x-offset gate, lower confidence floor) or towards rejecting
// duplicate markers (higher confidence floor), based on which issues the
// diagnosis reports. Both adjustments may apply together when a column
// has both missing and duplicate numbers.
func SuggestRetryParams(d Diagnosis, current RetryParams) RetryParams {
	out := current

	if len(d.Missing) > 0 {
		out.MaxMarkerXOffset = min(maxXOffsetCeiling, current.MaxMarkerXOffset+xOffsetStep)
		out.MinConfidenceForSource = max(confidenceFloor, current.MinConfidenceForSource-confidenceStep)
	}

	if len(d.Duplicates) > 0 {
		out.MinConfidenceForSource = min(confidenceDupCeil, out.MinConfidenceForSource+confidenceDupStep)
	}

	return out
}
