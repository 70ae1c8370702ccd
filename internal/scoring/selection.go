package scoring

import (
	"math"
	"sort"
)

// SelectionMode chooses how the cutoff of a selection run is computed.
type SelectionMode string

const (
	// SelectTopCount selects the best N candidates.
	SelectTopCount SelectionMode = "count"
	// SelectTopPercentage selects ceil(P x candidates) with P in (0,1].
	SelectTopPercentage SelectionMode = "percentage"
	// SelectThreshold selects every candidate whose final score reaches T.
	SelectThreshold SelectionMode = "threshold"
)

// SelectionParams configures one selection run.
type SelectionParams struct {
	Mode       SelectionMode `json:"mode"`
	Count      int           `json:"count,omitempty"`
	Percentage float64       `json:"percentage,omitempty"`
	Threshold  float64       `json:"threshold,omitempty"`
}

// NewSelectionParams builds validated parameters from a mode and its value.
func NewSelectionParams(mode SelectionMode, value float64) (SelectionParams, error) {
	params := SelectionParams{Mode: mode}
	switch mode {
	case SelectTopCount:
		if value != math.Trunc(value) {
			return SelectionParams{}, invalid(ErrInvalidSelection, "count", "count must be a whole number")
		}
		params.Count = int(value)
	case SelectTopPercentage:
		params.Percentage = value
	case SelectThreshold:
		params.Threshold = value
	}
	if err := params.Validate(); err != nil {
		return SelectionParams{}, err
	}
	return params, nil
}

// Validate checks the parameter attached to the mode.
func (p SelectionParams) Validate() error {
	switch p.Mode {
	case SelectTopCount:
		if p.Count < 0 {
			return invalid(ErrInvalidSelection, "count", "count must not be negative")
		}
	case SelectTopPercentage:
		if math.IsNaN(p.Percentage) || p.Percentage <= 0 || p.Percentage > 1 {
			return invalid(ErrInvalidSelection, "percentage", "percentage must be within (0,1]")
		}
	case SelectThreshold:
		if math.IsNaN(p.Threshold) || p.Threshold < 0 || p.Threshold > 100 {
			return invalid(ErrInvalidSelection, "threshold", "threshold must be within [0,100]")
		}
	default:
		return invalid(ErrInvalidSelection, "mode", "unknown selection mode %q", p.Mode)
	}
	return nil
}

// Value returns the numeric parameter of the active mode.
func (p SelectionParams) Value() float64 {
	switch p.Mode {
	case SelectTopCount:
		return float64(p.Count)
	case SelectTopPercentage:
		return p.Percentage
	default:
		return p.Threshold
	}
}

// RankedResult is one candidate's position in a selection run.
type RankedResult struct {
	StudentID  uint            `json:"student_id"`
	FinalScore float64         `json:"final_score"`
	Rank       int             `json:"rank"`
	Status     SelectionStatus `json:"status"`
}

// SelectionOutcome is the full, reproducible result of a selection run.
type SelectionOutcome struct {
	Params         SelectionParams `json:"params"`
	CandidateCount int             `json:"candidate_count"`
	Cutoff         int             `json:"cutoff"`
	Ranking        []RankedResult  `json:"ranking"`
	// Results mirrors the input rows, in input order, with ranked rows
	// rewritten. Not-eligible rows are returned unchanged.
	Results []FinalResult `json:"-"`
}

// SelectedIDs lists selected students in rank order.
func (o SelectionOutcome) SelectedIDs() []uint {
	ids := make([]uint, 0, o.Cutoff)
	for _, r := range o.Ranking {
		if r.Status == StatusSelected {
			ids = append(ids, r.StudentID)
		}
	}
	return ids
}

// Select ranks every candidate from scratch and marks the top cutoff as
// selected and the rest as rejected. Rows that are not eligible are left
// untouched. Prior statuses other than not_eligible have no influence on
// the outcome, so running twice on the same scores yields the same result.
func Select(results []FinalResult, params SelectionParams) (SelectionOutcome, error) {
	if err := params.Validate(); err != nil {
		return SelectionOutcome{}, err
	}

	seen := make(map[uint]struct{}, len(results))
	out := make([]FinalResult, len(results))
	candidates := make([]int, 0, len(results))
	for i, r := range results {
		if _, dup := seen[r.StudentID]; dup {
			return SelectionOutcome{}, invalid(ErrInvalidSelection, "results", "student %d appears more than once", r.StudentID)
		}
		seen[r.StudentID] = struct{}{}
		if r.Status != "" && !r.Status.Valid() {
			return SelectionOutcome{}, invalid(ErrInvalidSelection, "results", "student %d has unknown status %q", r.StudentID, r.Status)
		}

		out[i] = r
		if r.Ranked() {
			candidates = append(candidates, i)
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		ra, rb := out[candidates[a]], out[candidates[b]]
		if *ra.FinalScore != *rb.FinalScore {
			return *ra.FinalScore > *rb.FinalScore
		}
		return ra.StudentID < rb.StudentID
	})

	cutoff := cutoffFor(params, out, candidates)

	ranking := make([]RankedResult, 0, len(candidates))
	for pos, idx := range candidates {
		rank := pos + 1
		status := StatusRejected
		if pos < cutoff {
			status = StatusSelected
		}
		row := out[idx]
		row.Status = status
		row.Rank = &rank
		out[idx] = row

		ranking = append(ranking, RankedResult{
			StudentID:  row.StudentID,
			FinalScore: *row.FinalScore,
			Rank:       rank,
			Status:     status,
		})
	}

	return SelectionOutcome{
		Params:         params,
		CandidateCount: len(candidates),
		Cutoff:         cutoff,
		Ranking:        ranking,
		Results:        out,
	}, nil
}

func cutoffFor(params SelectionParams, rows []FinalResult, ranked []int) int {
	n := len(ranked)
	switch params.Mode {
	case SelectTopCount:
		if params.Count < n {
			return params.Count
		}
		return n
	case SelectTopPercentage:
		// Round away binary noise (0.2*10 must give 2, not 3) before ceil.
		product := math.Round(params.Percentage*float64(n)*1e6) / 1e6
		cutoff := int(math.Ceil(product))
		if cutoff > n {
			return n
		}
		return cutoff
	case SelectThreshold:
		cutoff := 0
		for _, idx := range ranked {
			if *rows[idx].FinalScore < params.Threshold {
				break
			}
			cutoff++
		}
		return cutoff
	default:
		return 0
	}
}
