package verdict

import (
	"fmt"
	"strings"
)

// Confidence grades how much an aggregated verdict can be trusted.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Verdict is the aggregated decision for one verification run.
type Verdict struct {
	Reproduced      bool       `json:"reproduced"`
	Confidence      Confidence `json:"confidence"`
	Attempted       int        `json:"attempted"`
	ReproducedCount int        `json:"reproduced_count"`
	Errored         int        `json:"errored"`
	Summary         string     `json:"summary"`
	Results         []Result   `json:"results,omitempty"`
	// Steps come from the first reproducing target, in input order.
	Steps []string `json:"steps,omitempty"`
}

// Aggregate folds per-target results into one verdict. It is pure and
// deterministic: the outcome depends only on the multiset of results, the
// summary text follows input order.
//
// Majority vote over completed results; ties resolve to not reproduced.
// Confidence is LOW with no completed results or a single one, HIGH with at
// least three completed results, agreement >= 0.8 and no errored targets,
// MEDIUM otherwise.
func Aggregate(results []Result) Verdict {
	v := Verdict{
		Attempted: len(results),
		Results:   append([]Result(nil), results...),
	}

	total := 0
	for _, r := range results {
		if r.Errored() {
			v.Errored++
			continue
		}
		total++
		if r.Reproduced {
			v.ReproducedCount++
			if v.Steps == nil && len(r.Steps) > 0 {
				v.Steps = append([]string(nil), r.Steps...)
			}
		}
	}

	var rationale string
	switch {
	case total == 0:
		v.Reproduced = false
		v.Confidence = ConfidenceLow
		v.Steps = nil
		rationale = fmt.Sprintf("all %d targets failed to execute", v.Attempted)
	default:
		v.Reproduced = v.ReproducedCount*2 > total
		agree := v.ReproducedCount
		if total-agree > agree {
			agree = total - agree
		}
		switch {
		case total == 1:
			v.Confidence = ConfidenceLow
			rationale = "single target result"
		case total >= 3 && agree*5 >= total*4 && v.Errored == 0:
			v.Confidence = ConfidenceHigh
			rationale = fmt.Sprintf("%d/%d targets agree, no errors", agree, total)
		default:
			v.Confidence = ConfidenceMedium
			rationale = mediumRationale(agree, total, v.Errored)
		}
		if !v.Reproduced {
			v.Steps = nil
		}
	}

	v.Summary = summarize(results, v, total, rationale)
	return v
}

func mediumRationale(agree, total, errored int) string {
	parts := []string{fmt.Sprintf("%d/%d targets agree", agree, total)}
	if total < 3 {
		parts = append(parts, "fewer than 3 completed targets")
	}
	if agree*5 < total*4 {
		parts = append(parts, "agreement below 80%")
	}
	if errored > 0 {
		parts = append(parts, fmt.Sprintf("%d errored", errored))
	}
	return strings.Join(parts, ", ")
}

func summarize(results []Result, v Verdict, total int, rationale string) string {
	var b strings.Builder
	for _, r := range results {
		switch {
		case r.Errored():
			fmt.Fprintf(&b, "[ERROR] %s: %s", r.name(), r.Failure.Kind)
			if r.Failure.Reason != "" {
				fmt.Fprintf(&b, ": %s", r.Failure.Reason)
			}
		case r.Reproduced:
			fmt.Fprintf(&b, "[REPRODUCED] %s", r.name())
		default:
			fmt.Fprintf(&b, "[NOT REPRODUCED] %s", r.name())
		}
		if obs := firstLine(r.Report); obs != "" {
			fmt.Fprintf(&b, " - %s", obs)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Reproduction rate: %d/%d", v.ReproducedCount, total)
	if v.Errored > 0 {
		fmt.Fprintf(&b, " (%d of %d targets errored)", v.Errored, v.Attempted)
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "Confidence: %s (%s)", v.Confidence, rationale)
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
