package situation_test

import (
	"testing"
	"time"

	"github.com/opst/stevedore/pkg/domain"
	"github.com/opst/stevedore/pkg/tasks/tackle/situation"
	"github.com/opst/stevedore/pkg/utils/try"
)

func TestParse(t *testing.T) {
	t.Run("it parses well-formed expressions", func(t *testing.T) {
		for _, testcase := range []struct {
			text      string
			metric    string
			op        string
			threshold float64
			window    time.Duration
		}{
			{"(healthy == 0) * 2m", "healthy", "==", 0, 2 * time.Minute},
			{"(alive < 1) * 30s", "alive", "<", 1, 30 * time.Second},
			{"( healthy != 1 ) * 1h", "healthy", "!=", 1, time.Hour},
			{"(alive >= 0.5) * 1m30s", "alive", ">=", 0.5, 90 * time.Second},
		} {
			e := try.To(situation.Parse(testcase.text)).OrFatal(t)
			if e.Metric != testcase.metric || e.Op != testcase.op ||
				e.Threshold != testcase.threshold || e.Window != testcase.window {
				t.Errorf("%s: got %+v", testcase.text, e)
			}
			if e.String() != testcase.text {
				t.Errorf("String should echo the source: got %s", e.String())
			}
		}
	})

	t.Run("it rejects malformed expressions", func(t *testing.T) {
		for _, text := range []string{
			"",
			"healthy == 0",
			"(healthy == 0)",
			"(healthy == 0) * ",
			"(cpu > 90) * 2m",           // unknown metric
			"(healthy = 0) * 2m",        // not a comparison
			"(healthy == zero) * 2m",    // not a number
			"(healthy == 0) * 2 apples", // not a duration
		} {
			if _, err := situation.Parse(text); err == nil {
				t.Errorf("%q should be rejected", text)
			}
		}
	})
}

func TestEval(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	expr := try.To(situation.Parse("(healthy == 0) * 2m")).OrFatal(t)

	sample := func(age time.Duration, healthy bool) domain.HealthSample {
		return domain.HealthSample{
			ContainerId: "container-aaaa-0001",
			At:          now.Add(-age),
			Alive:       true,
			Healthy:     healthy,
		}
	}

	t.Run("it holds when the whole window is covered and satisfied", func(t *testing.T) {
		samples := []domain.HealthSample{
			sample(3*time.Minute, true), // before the window: proves coverage
			sample(90*time.Second, false),
			sample(60*time.Second, false),
			sample(30*time.Second, false),
		}
		if !expr.Eval(now, samples) {
			t.Error("the situation should hold")
		}
	})

	t.Run("a satisfied sample outside the window is not judged", func(t *testing.T) {
		samples := []domain.HealthSample{
			sample(3*time.Minute, false), // unhealthy, but out of scope
			sample(60*time.Second, false),
		}
		if !expr.Eval(now, samples) {
			t.Error("only in-window samples should be judged")
		}
	})

	t.Run("it does not hold when the record starts mid-window", func(t *testing.T) {
		samples := []domain.HealthSample{
			sample(90*time.Second, false),
			sample(30*time.Second, false),
		}
		if expr.Eval(now, samples) {
			t.Error("an uncovered window should not hold")
		}
	})

	t.Run("it does not hold when any in-window sample violates", func(t *testing.T) {
		samples := []domain.HealthSample{
			sample(3*time.Minute, true),
			sample(90*time.Second, false),
			sample(60*time.Second, true), // recovered for a moment
			sample(30*time.Second, false),
		}
		if expr.Eval(now, samples) {
			t.Error("a violated window should not hold")
		}
	})

	t.Run("it does not hold without samples", func(t *testing.T) {
		if expr.Eval(now, nil) {
			t.Error("no data should not hold")
		}
	})
}

func TestMaxWindow(t *testing.T) {
	exprs := try.To(situation.ParseAll([]string{
		"(healthy == 0) * 2m",
		"(alive == 0) * 10m",
		"(healthy < 1) * 30s",
	})).OrFatal(t)

	if got := situation.MaxWindow(exprs); got != 10*time.Minute {
		t.Errorf("max window: got %s", got)
	}

	if got := situation.MaxWindow(nil); got != 0 {
		t.Errorf("max window of nothing: got %s", got)
	}
}
