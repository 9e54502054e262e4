package narrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jwebster45206/escape-engine/pkg/chat"
	"github.com/jwebster45206/escape-engine/pkg/restraint"
	"github.com/jwebster45206/escape-engine/pkg/session"
)

// Builder constructs chat messages for a narrator turn using a fluent interface.
type Builder struct {
	catalog      *restraint.Catalog
	session      *session.Session
	offerable    []restraint.Kind
	restrictions []string
	opening      bool
	historyLimit int
	messages     []chat.ChatMessage
}

// NewBuilder creates a new prompt builder with default settings.
func NewBuilder(catalog *restraint.Catalog) *Builder {
	return &Builder{
		catalog:      catalog,
		historyLimit: session.HistoryLimit,
		messages:     make([]chat.ChatMessage, 0),
	}
}

// WithSession sets the session the turn is for.
func (b *Builder) WithSession(s *session.Session) *Builder {
	b.session = s
	return b
}

// WithOfferable sets the offerable set shown as context.
func (b *Builder) WithOfferable(kinds []restraint.Kind) *Builder {
	b.offerable = kinds
	return b
}

// WithRestrictions sets the operator's free-text safety restrictions.
func (b *Builder) WithRestrictions(restrictions []string) *Builder {
	b.restrictions = restrictions
	return b
}

// WithOpening marks the first scene after consent.
func (b *Builder) WithOpening(opening bool) *Builder {
	b.opening = opening
	return b
}

// WithHistoryLimit sets the chat history window size.
func (b *Builder) WithHistoryLimit(limit int) *Builder {
	b.historyLimit = limit
	return b
}

// Build constructs and returns the final message array for LLM consumption.
func (b *Builder) Build() ([]chat.ChatMessage, error) {
	if b.catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if b.session == nil {
		return nil, fmt.Errorf("session is required")
	}

	b.messages = make([]chat.ChatMessage, 0, len(b.session.History)+3)

	// 1. System prompt with rules and restrictions
	b.addSystemPrompt()

	// 2. Session state
	if err := b.addStatePrompt(); err != nil {
		return nil, fmt.Errorf("error building state prompt: %w", err)
	}

	// 3. Windowed history
	b.addHistory()

	// 4. Reply format and turn reminders
	b.addFinalPrompt()

	return b.messages, nil
}

func (b *Builder) addSystemPrompt() {
	var sb strings.Builder
	sb.WriteString(SystemPrompt)

	if len(b.restrictions) > 0 {
		sb.WriteString("\n\n" + RestrictionsHeader + "\n")
		for i, r := range b.restrictions {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, r))
		}
	}

	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleSystem,
		Content: sb.String(),
	})
}

type promptRestraint struct {
	Kind         string `json:"kind"`
	DisplayName  string `json:"display_name"`
	MaxIntensity int    `json:"max_intensity"`
	Default      int    `json:"default_intensity"`
}

type promptState struct {
	Theme               string            `json:"theme,omitempty"`
	AllowedRestraints   []promptRestraint `json:"allowed_restraints"`
	OfferableRestraints []string          `json:"offerable_restraints"`
	CurrentRestraints   map[string]int    `json:"current_restraints"`
	Incapacitated       bool              `json:"incapacitated"`
}

func (b *Builder) addStatePrompt() error {
	ps := promptState{
		Theme:               b.session.Theme,
		AllowedRestraints:   make([]promptRestraint, 0, len(b.session.AllowedRestraints)),
		OfferableRestraints: make([]string, 0, len(b.offerable)),
		CurrentRestraints:   make(map[string]int),
		Incapacitated:       b.session.Incapacitated,
	}
	for _, k := range b.session.AllowedRestraints {
		spec, ok := b.catalog.Lookup(k)
		if !ok {
			continue
		}
		ps.AllowedRestraints = append(ps.AllowedRestraints, promptRestraint{
			Kind:         string(k),
			DisplayName:  spec.DisplayName,
			MaxIntensity: spec.MaxIntensity,
			Default:      spec.Default,
		})
	}
	for _, k := range b.offerable {
		ps.OfferableRestraints = append(ps.OfferableRestraints, string(k))
	}
	for _, k := range b.session.CurrentRestraints.Active() {
		ps.CurrentRestraints[string(k)] = b.session.CurrentRestraints[k]
	}

	data, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		return err
	}

	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleSystem,
		Content: "### Current state\n" + string(data),
	})
	return nil
}

func (b *Builder) addHistory() {
	history := b.session.History
	if b.historyLimit > 0 && len(history) > b.historyLimit {
		history = history[len(history)-b.historyLimit:]
	}

	for _, h := range history {
		role := chat.ChatRoleUser
		if h.Role == session.RoleNarrator {
			role = chat.ChatRoleAgent
		}
		b.messages = append(b.messages, chat.ChatMessage{Role: role, Content: h.Text})
	}
}

func (b *Builder) addFinalPrompt() {
	parts := []string{ReplyFormatPrompt}
	if b.opening {
		parts = append(parts, OpeningPrompt)
	}
	if b.session.Incapacitated {
		parts = append(parts, IncapacitatedPrompt)
	}
	if b.catalog.IsGagged(b.session.CurrentRestraints) {
		parts = append(parts, GaggedPrompt)
	}

	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleSystem,
		Content: strings.Join(parts, "\n\n"),
	})
}
