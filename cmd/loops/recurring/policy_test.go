package recurring_test

import (
	"errors"
	"testing"
	"time"

	"github.com/opst/stevedore/cmd/loops/recurring"
	"github.com/opst/stevedore/pkg/loop"
)

func TestParsePolicy(t *testing.T) {
	for name, testcase := range map[string]struct {
		when        string
		then        recurring.Policy
		expectError bool
	}{
		"forever means forever": {
			when: "forever",
			then: recurring.Forever(0),
		},
		"forever:3s means forever with cooldown 3 seconds": {
			when: "forever:3s",
			then: recurring.Forever(3 * time.Second),
		},
		"forever:someday can not be parsed (someday is not time.Duration)": {
			when:        "forever:someday",
			expectError: true,
		},
		"backlog means backlog": {
			when: "backlog",
			then: recurring.Backlog(),
		},
		"backlog:param can not be parsed (it should not take any parameters)": {
			when:        "backlog:param",
			expectError: true,
		},
		"empty string can not be parsed (it is not policy)": {
			when:        "",
			expectError: true,
		},
		"unknown policy can not be parsed (it is not policy)": {
			when:        "???????unknown??????",
			expectError: true,
		},
	} {
		t.Run(name, func(t *testing.T) {
			when, expected := testcase.when, testcase.then
			actual, err := recurring.ParsePolicy(when)

			if testcase.expectError {
				if err == nil {
					t.Fatal("expected error does not occured")
				}
				return
			}

			if err != nil {
				t.Fatal(err)
			}

			if actual != expected {
				t.Errorf("unmatch: (actual, expected) = (%v, %v)", actual, expected)
			}
		})
	}
}

func TestPolicyNext(t *testing.T) {
	t.Run("forever continues immediately while updated, with cooldown otherwise", func(t *testing.T) {
		p := recurring.Forever(3 * time.Second)

		if next := p.Next(true, nil); next != loop.Continue(0) {
			t.Errorf("updated: got %+v", next)
		}
		if next := p.Next(false, nil); next != loop.Continue(3*time.Second) {
			t.Errorf("idle: got %+v", next)
		}
	})

	t.Run("backlog breaks when nothing is left", func(t *testing.T) {
		p := recurring.Backlog()

		if next := p.Next(true, nil); next != loop.Continue(0) {
			t.Errorf("updated: got %+v", next)
		}
		if next := p.Next(false, nil); next != loop.Break(nil) {
			t.Errorf("idle: got %+v", next)
		}
	})

	t.Run("untilError breaks on error and delegates otherwise", func(t *testing.T) {
		p := recurring.UntilError(recurring.Forever(0))

		expectedErr := errors.New("fake error")
		if next := p.Next(true, expectedErr); next != loop.Break(expectedErr) {
			t.Errorf("error: got %+v", next)
		}
		if next := p.Next(true, nil); next != loop.Continue(0) {
			t.Errorf("no error: got %+v", next)
		}
	})
}
