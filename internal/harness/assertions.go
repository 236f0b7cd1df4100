package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It carries the transcript so failures can be read in context.
type AssertionError struct {
	Type       string   // Assertion type for categorization
	Expected   string   // Human-readable expected outcome
	Actual     string   // Human-readable actual outcome
	Transcript []string // Full transcript for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Transcript) > 0 {
		fmt.Fprintf(&buf, "\nTranscript:\n")
		for i, msg := range e.Transcript {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, msg)
		}
	}

	return buf.String()
}

// envelope is the decoded form of a transcript line.
type envelope struct {
	Event  string `json:"event"`
	Params any    `json:"params"`
	Data   any    `json:"data"`
}

// EvaluateAssertions checks every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	envelopes, err := decodeTranscript(result.Transcript)
	if err != nil {
		return []string{err.Error()}
	}

	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, envelopes, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %s", i, err.Error()))
		}
	}
	return errs
}

func evaluate(result *Result, envelopes []envelope, a Assertion) error {
	switch a.Type {
	case AssertEventCount:
		return assertEventCount(result.Transcript, envelopes, a)
	case AssertEventOrder:
		return assertEventOrder(result.Transcript, envelopes, a)
	case AssertEventData:
		return assertEventData(result.Transcript, envelopes, a)
	case AssertRegistry:
		return assertRegistry(result.Registry, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func decodeTranscript(transcript []string) ([]envelope, error) {
	out := make([]envelope, len(transcript))
	for i, msg := range transcript {
		if err := json.Unmarshal([]byte(msg), &out[i]); err != nil {
			return nil, fmt.Errorf("transcript[%d]: not an envelope: %w", i, err)
		}
	}
	return out, nil
}

// assertEventCount checks the number of envelopes carrying an event.
func assertEventCount(transcript []string, envelopes []envelope, a Assertion) error {
	count := 0
	for _, env := range envelopes {
		if env.Event == a.Event {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:       AssertEventCount,
			Expected:   fmt.Sprintf("%d %s events", a.Count, a.Event),
			Actual:     fmt.Sprintf("%d %s events", count, a.Event),
			Transcript: transcript,
		}
	}
	return nil
}

// assertEventOrder checks that the events appear as a subsequence.
// Other envelopes may appear in between.
func assertEventOrder(transcript []string, envelopes []envelope, a Assertion) error {
	next := 0
	for _, env := range envelopes {
		if next < len(a.Events) && env.Event == a.Events[next] {
			next++
		}
	}

	if next < len(a.Events) {
		return &AssertionError{
			Type:       AssertEventOrder,
			Expected:   fmt.Sprintf("events in order: %v", a.Events),
			Actual:     fmt.Sprintf("no %s after %v", a.Events[next], a.Events[:next]),
			Transcript: transcript,
		}
	}
	return nil
}

// assertEventData checks the data of the last envelope for an event.
func assertEventData(transcript []string, envelopes []envelope, a Assertion) error {
	var last *envelope
	for i := range envelopes {
		if envelopes[i].Event == a.Event {
			last = &envelopes[i]
		}
	}
	if last == nil {
		return &AssertionError{
			Type:       AssertEventData,
			Expected:   fmt.Sprintf("a %s event", a.Event),
			Actual:     "none sent",
			Transcript: transcript,
		}
	}

	want, err := normalize(a.Data)
	if err != nil {
		return fmt.Errorf("event_data: %w", err)
	}
	if !reflect.DeepEqual(want, last.Data) {
		return &AssertionError{
			Type:       AssertEventData,
			Expected:   fmt.Sprintf("%s data %v", a.Event, want),
			Actual:     fmt.Sprintf("%s data %v", a.Event, last.Data),
			Transcript: transcript,
		}
	}
	return nil
}

// assertRegistry checks the final registry, order-insensitively.
func assertRegistry(registry []string, a Assertion) error {
	want := map[string]bool{}
	for _, t := range a.Tables {
		want[t] = true
	}
	got := map[string]bool{}
	for _, t := range registry {
		got[t] = true
	}

	if !reflect.DeepEqual(want, got) {
		return &AssertionError{
			Type:     AssertRegistry,
			Expected: fmt.Sprintf("registry %v", a.Tables),
			Actual:   fmt.Sprintf("registry %v", registry),
		}
	}
	return nil
}

// normalize round-trips a YAML value through JSON so it compares equal to
// decoded envelope data (float64 numbers, []any, map[string]any).
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
