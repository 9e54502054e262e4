package narrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/escape-engine/pkg/restraint"
)

var (
	// ErrAdapterFailure wraps every error the adapter returns.
	ErrAdapterFailure = errors.New("narrator adapter failure")
	// ErrMalformedReply means the reply was not a JSON object of the expected shape.
	ErrMalformedReply = errors.New("malformed narrator reply")
	// ErrMissingScenario means the reply had no scenario_text.
	ErrMissingScenario = errors.New("narrator reply missing scenario_text")
)

// Outcome is the narrator's verdict on the turn.
type Outcome string

const (
	OutcomeContinue  Outcome = "continue"
	OutcomeEscape    Outcome = "escape"
	OutcomeSurrender Outcome = "surrender"
)

func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeContinue, OutcomeEscape, OutcomeSurrender:
		return true
	default:
		return false
	}
}

// Effect is a declared change to one restraint. It is either Apply or Tighten.
type Effect interface {
	// Target is the restraint the effect changes.
	Target() restraint.Kind
	// Op names the effect for logs.
	Op() string
	// resolve returns the intensity after the effect, and false if the
	// effect cannot be applied at all.
	resolve(current, maximum int) (int, bool)
}

// Apply sets a restraint to Level.
type Apply struct {
	Kind  restraint.Kind
	Level int
}

func (a Apply) Target() restraint.Kind { return a.Kind }
func (a Apply) Op() string             { return "apply" }

func (a Apply) resolve(current, maximum int) (int, bool) {
	if a.Level < 0 || a.Level > maximum {
		return current, false
	}
	return a.Level, true
}

// Tighten raises a restraint by Amount, clamped to its maximum.
type Tighten struct {
	Kind   restraint.Kind
	Amount int
}

func (t Tighten) Target() restraint.Kind { return t.Kind }
func (t Tighten) Op() string             { return "tighten" }

func (t Tighten) resolve(current, maximum int) (int, bool) {
	if t.Amount <= 0 {
		return current, false
	}
	return min(current+t.Amount, maximum), true
}

// Reply is a parsed and validated narrator turn.
type Reply struct {
	ScenarioText string
	Choices      []string
	Theme        string
	// Effects passed validation and are safe to apply in order.
	Effects []Effect
	Outcome Outcome

	// Rejected effects, already logged.
	Rejected []*RejectionError
	// Inferred is set when Effects came from opening-scene inference.
	Inferred bool
}

type wireEffect struct {
	Op     string `json:"op"`
	Kind   string `json:"kind"`
	Level  *int   `json:"level"`
	Amount *int   `json:"amount"`
}

type wireReply struct {
	ScenarioText string       `json:"scenario_text"`
	Choices      []string     `json:"choices"`
	Theme        *string      `json:"theme"`
	Effects      []wireEffect `json:"effects"`
	Outcome      string       `json:"outcome"`
}

// parseReply decodes a raw model reply. Effects that cannot be decoded into
// Apply or Tighten are returned as rejections; everything else about the
// reply must be well formed.
func parseReply(raw string) (*Reply, []*RejectionError, error) {
	body, ok := extractJSON(raw)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no JSON object found", ErrMalformedReply)
	}

	var w wireReply
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedReply, err)
	}

	text := strings.TrimSpace(w.ScenarioText)
	if text == "" {
		return nil, nil, ErrMissingScenario
	}

	outcome := Outcome(strings.ToLower(strings.TrimSpace(w.Outcome)))
	if outcome == "" {
		outcome = OutcomeContinue
	}
	if !outcome.IsValid() {
		return nil, nil, fmt.Errorf("%w: unknown outcome %q", ErrMalformedReply, w.Outcome)
	}

	r := &Reply{
		ScenarioText: text,
		Choices:      make([]string, 0, len(w.Choices)),
		Outcome:      outcome,
	}
	for _, c := range w.Choices {
		if c = strings.TrimSpace(c); c != "" {
			r.Choices = append(r.Choices, c)
		}
	}
	if w.Theme != nil {
		r.Theme = strings.TrimSpace(*w.Theme)
	}

	var malformed []*RejectionError
	for _, we := range w.Effects {
		e, err := we.decode()
		if err != nil {
			malformed = append(malformed, err)
			continue
		}
		r.Effects = append(r.Effects, e)
	}

	return r, malformed, nil
}

func (w wireEffect) decode() (Effect, *RejectionError) {
	kind := restraint.Kind(strings.ToLower(strings.TrimSpace(w.Kind)))
	switch strings.ToLower(strings.TrimSpace(w.Op)) {
	case "apply":
		if w.Level == nil {
			return nil, &RejectionError{Kind: kind, Op: "apply", Reason: ReasonMalformed}
		}
		return Apply{Kind: kind, Level: *w.Level}, nil
	case "tighten":
		if w.Amount == nil {
			return nil, &RejectionError{Kind: kind, Op: "tighten", Reason: ReasonMalformed}
		}
		return Tighten{Kind: kind, Amount: *w.Amount}, nil
	default:
		return nil, &RejectionError{Kind: kind, Op: w.Op, Reason: ReasonMalformed}
	}
}

// extractJSON finds the outermost JSON object in s, tolerating code fences
// and stray prose around it.
func extractJSON(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
