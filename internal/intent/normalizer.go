package intent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrNoInput is returned when a query has neither text nor audio.
var ErrNoInput = errors.New("query has neither text nor audio")

// Query is one user utterance, either typed or spoken.
type Query struct {
	Text  string
	Audio []byte
}

// Empty reports whether the query carries no input.
func (q Query) Empty() bool {
	return strings.TrimSpace(q.Text) == "" && len(q.Audio) == 0
}

// Response is the raw answer of the NLU service.
type Response struct {
	IntentName               string
	Parameters               map[string]interface{}
	AllRequiredParamsPresent bool
	FulfillmentText          string

	// QueryText is the recognised utterance, the transcript for audio.
	QueryText string
}

// Detector classifies a single utterance. Implementations make exactly one
// call to the NLU service per Detect.
type Detector interface {
	Detect(ctx context.Context, sessionID string, q Query) (*Response, error)
}

// Params holds the typed parameters extracted from a response. Fields not
// relevant to the intent are nil.
type Params struct {
	// Start is the meeting instant for meeting intents.
	Start *time.Time

	// DurationMinutes is the meeting length for the schedule intent.
	DurationMinutes *int

	// Reminder is the optional reminder toggle of the schedule intent.
	Reminder *bool

	// Date is the start of the named day for the date intent.
	Date *time.Time
}

// Result is a normalised intent.
type Result struct {
	Kind             Kind
	Name             string
	Params           Params
	AllParamsPresent bool
	FulfillmentText  string
	QueryText        string
	IsMentioned      bool
}

// Normalizer calls the detector and converts its response into a Result.
type Normalizer struct {
	detector Detector
	loc      *time.Location
	botName  string
}

// NewNormalizer creates a Normalizer interpreting dates in loc.
func NewNormalizer(detector Detector, loc *time.Location, botName string) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{detector: detector, loc: loc, botName: botName}
}

// Normalize classifies q with a single detector call.
func (n *Normalizer) Normalize(ctx context.Context, sessionID string, q Query) (*Result, error) {
	if q.Empty() {
		return nil, ErrNoInput
	}
	resp, err := n.detector.Detect(ctx, sessionID, q)
	if err != nil {
		return nil, fmt.Errorf("detecting intent: %w", err)
	}
	return n.FromResponse(resp), nil
}

// FromResponse converts a raw response. Completeness is recomputed: the
// result is complete only when the service says so and every required
// typed value could be extracted.
func (n *Normalizer) FromResponse(resp *Response) *Result {
	kind := ParseKind(resp.IntentName)
	res := &Result{
		Kind:            kind,
		Name:            resp.IntentName,
		FulfillmentText: resp.FulfillmentText,
		QueryText:       resp.QueryText,
		IsMentioned:     n.isMentioned(resp.QueryText),
	}

	complete := resp.AllRequiredParamsPresent
	params := resp.Parameters

	if kind.needsInstant() {
		res.Params.Start = n.combine(params)
		complete = complete && res.Params.Start != nil
	}

	switch kind {
	case KindScheduleMeeting:
		res.Params.DurationMinutes = durationMinutes(params["duration"])
		res.Params.Reminder = reminderToggle(params["reminder"])
		complete = complete && res.Params.DurationMinutes != nil
	case KindDate:
		if d := n.parseTime(params["date"]); d != nil {
			y, m, day := d.Date()
			start := time.Date(y, m, day, 0, 0, 0, 0, n.loc)
			res.Params.Date = &start
		}
		complete = complete && res.Params.Date != nil
	}

	res.AllParamsPresent = complete
	return res
}

// combine overlays the time of day of the "time" parameter onto the
// "date" parameter. Either one missing yields nil.
func (n *Normalizer) combine(params map[string]interface{}) *time.Time {
	date := n.parseTime(params["date"])
	clock := n.parseTime(params["time"])
	if date == nil || clock == nil {
		return nil
	}
	y, m, d := date.Date()
	t := time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, n.loc)
	return &t
}

// parseTime reads a timestamp parameter in the team location. The NLU
// sends RFC 3339 strings, sometimes wrapped in a date_time object.
func (n *Normalizer) parseTime(v interface{}) *time.Time {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.ParseInLocation(layout, val, n.loc); err == nil {
				t = t.In(n.loc)
				return &t
			}
		}
	case map[string]interface{}:
		return n.parseTime(val["date_time"])
	}
	return nil
}

// durationMinutes reads an {amount, unit} duration. Hours are converted to
// minutes; a missing or non-positive amount yields nil.
func durationMinutes(v interface{}) *int {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	amount, ok := m["amount"].(float64)
	if !ok {
		return nil
	}
	if unit, _ := m["unit"].(string); unit == "h" {
		amount *= 60
	}
	minutes := int(math.Round(amount))
	if minutes <= 0 {
		return nil
	}
	return &minutes
}

func reminderToggle(v interface{}) *bool {
	s, _ := v.(string)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on":
		on := true
		return &on
	case "off":
		off := false
		return &off
	}
	return nil
}

// isMentioned reports whether the utterance addresses the bot by name,
// optionally after "hey".
func (n *Normalizer) isMentioned(text string) bool {
	if n.botName == "" {
		return false
	}
	text = strings.ToLower(strings.TrimSpace(text))
	name := strings.ToLower(n.botName)
	if rest, ok := strings.CutPrefix(text, "hey"); ok && (rest == "" || rest[0] == ' ' || rest[0] == ',') {
		text = strings.TrimLeft(rest, " ,")
	}
	return strings.HasPrefix(text, name)
}
