// Package situation evaluates remediation-rule expressions against the
// rolling health window of a container.
//
// An expression reads "(<metric> <op> <number>) * <duration>", for
// example "(healthy == 0) * 2m": the metric satisfied the comparison
// continuously for the whole duration. Metrics are "healthy" and
// "alive", valued 1 or 0 per sample.
package situation

import (
	"fmt"
	"regexp"
	"time"

	"github.com/opst/stevedore/pkg/domain"
)

type Expr struct {
	Metric    string
	Op        string
	Threshold float64
	Window    time.Duration

	raw string
}

var pattern = regexp.MustCompile(
	`^\(\s*(healthy|alive)\s*(==|!=|<=|>=|<|>)\s*([0-9]+(?:\.[0-9]+)?)\s*\)\s*\*\s*([0-9]+[smh](?:[0-9]+[smh])*)$`,
)

func Parse(text string) (Expr, error) {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return Expr{}, fmt.Errorf(`situation should read "(<metric> <op> <number>) * <duration>": %s`, text)
	}

	var threshold float64
	if _, err := fmt.Sscanf(m[3], "%g", &threshold); err != nil {
		return Expr{}, err
	}
	window, err := time.ParseDuration(m[4])
	if err != nil {
		return Expr{}, err
	}
	if window <= 0 {
		return Expr{}, fmt.Errorf("situation window should be positive: %s", text)
	}

	return Expr{
		Metric:    m[1],
		Op:        m[2],
		Threshold: threshold,
		Window:    window,
		raw:       text,
	}, nil
}

// ParseAll parses each expression, failing on the first bad one.
func ParseAll(texts []string) ([]Expr, error) {
	exprs := make([]Expr, 0, len(texts))
	for _, text := range texts {
		e, err := Parse(text)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

func (e Expr) String() string {
	return e.raw
}

// Eval reports whether the situation holds at now, given samples oldest
// first.
//
// It holds when every sample within the window satisfies the comparison
// AND the record reaches back far enough to cover the window. A window
// with no data, or data starting mid-window, does not hold; freshly
// deployed containers never trip a rule before their window fills.
func (e Expr) Eval(now time.Time, samples []domain.HealthSample) bool {
	horizon := now.Add(-e.Window)

	covered := false
	held := false
	for _, s := range samples {
		if !s.At.After(horizon) {
			// data at or before the horizon proves coverage, but only
			// samples inside the window are judged.
			covered = true
			continue
		}
		if !e.satisfied(s) {
			return false
		}
		held = true
	}
	return covered && held
}

func (e Expr) satisfied(s domain.HealthSample) bool {
	value := 0.0
	switch e.Metric {
	case "healthy":
		if s.Healthy {
			value = 1.0
		}
	case "alive":
		if s.Alive {
			value = 1.0
		}
	}

	switch e.Op {
	case "==":
		return value == e.Threshold
	case "!=":
		return value != e.Threshold
	case "<":
		return value < e.Threshold
	case "<=":
		return value <= e.Threshold
	case ">":
		return value > e.Threshold
	case ">=":
		return value >= e.Threshold
	}
	return false
}

// MaxWindow is the longest window among exprs, bounding how much history
// evaluation needs.
func MaxWindow(exprs []Expr) time.Duration {
	max := time.Duration(0)
	for _, e := range exprs {
		if max < e.Window {
			max = e.Window
		}
	}
	return max
}
