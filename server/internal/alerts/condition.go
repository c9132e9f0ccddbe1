package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/relaxlab/qexp/pkg/types"
)

// condition is a parsed "field operator value" rule expression.
//
// Supported expressions:
//
//	t1_us < 20
//	stderr_pct > 10
//	quality_score < 60
//	uptime_pct < 90
//	amplitude < 0.5
//	offset > 0.2
//	state == failed
//	state != good
type condition struct {
	field     string
	op        string
	threshold float64
	text      string
}

// fitFields are only meaningful when the snapshot carries fit parameters.
var fitFields = map[string]bool{
	"t1_us":      true,
	"stderr_pct": true,
	"amplitude":  true,
	"offset":     true,
}

var numericFields = map[string]bool{
	"t1_us":         true,
	"stderr_pct":    true,
	"amplitude":     true,
	"offset":        true,
	"quality_score": true,
	"uptime_pct":    true,
}

// parseCondition validates cond and returns its parsed form.
func parseCondition(cond string) (condition, error) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return condition{}, fmt.Errorf("alerts: condition %q: want \"field op value\"", cond)
	}
	c := condition{field: parts[0], op: parts[1]}

	if c.field == "state" {
		if c.op != "==" && c.op != "!=" {
			return condition{}, fmt.Errorf("alerts: condition %q: state supports == and != only", cond)
		}
		c.text = parts[2]
		return c, nil
	}
	if !numericFields[c.field] {
		return condition{}, fmt.Errorf("alerts: condition %q: unknown field %q", cond, c.field)
	}
	switch c.op {
	case ">", ">=", "<", "<=", "==", "!=":
	default:
		return condition{}, fmt.Errorf("alerts: condition %q: unknown operator %q", cond, c.op)
	}
	v, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return condition{}, fmt.Errorf("alerts: condition %q: %w", cond, err)
	}
	c.threshold = v
	return c, nil
}

// eval tests the condition against snap. It returns whether the condition
// holds, the triggering value, and whether the snapshot could be judged at
// all: fit fields on an unfitted snapshot are not evaluable.
func (c condition) eval(snap *types.FitSnapshot) (fires bool, value float64, ok bool) {
	if c.field == "state" {
		eq := snap.State == c.text
		if c.op == "!=" {
			return !eq, 0, true
		}
		return eq, 0, true
	}
	if fitFields[c.field] && !snap.Fitted() {
		return false, 0, false
	}
	v := numericField(c.field, snap)
	return compareFloat(v, c.op, c.threshold), v, true
}

// numericField maps a field name to its value in the snapshot.
func numericField(field string, snap *types.FitSnapshot) float64 {
	switch field {
	case "t1_us":
		return snap.T1Micros()
	case "stderr_pct":
		return snap.StderrPct()
	case "amplitude":
		return snap.Amplitude
	case "offset":
		return snap.Offset
	case "quality_score":
		return snap.QualityScore
	case "uptime_pct":
		return snap.UptimePct
	default:
		return 0
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
