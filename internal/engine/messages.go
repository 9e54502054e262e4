package engine

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/escape-engine/internal/host"
	"github.com/jwebster45206/escape-engine/pkg/consent"
	"github.com/jwebster45206/escape-engine/pkg/restraint"
	"github.com/jwebster45206/escape-engine/pkg/session"
)

// Player-facing text. Nothing here may carry internal error detail.
const (
	msgConsentIntro = "Before we begin: which restraints are you comfortable with in this story?"
	msgConsentHow   = "Reply with a comma-separated list, `all`, or `none`."
	msgConsentKeep  = "Reply `keep` to use your previous choice (%s)."
	msgNoOfferable  = "No restraints are available on this server. Reply with anything to begin."

	msgAdapterFailure = "The narrator lost the thread for a moment. Try another action, or use /end to stop."
	msgOpeningFailure = "The story could not begin just now. Send your consent reply again to retry, or use /end to stop."
	msgPersistFailure = "Something went wrong saving your progress, so that turn did not count. Try again, or use /end to stop."

	msgEscalation = "You are now completely restrained. Struggling will be much harder."
	msgRelief     = "You are no longer completely restrained."

	msgVictory   = "You escaped! This room will close shortly."
	msgSurrender = "You gave in. The story is over for now."
	msgOffer     = "Reply `retry` to start over in this room, or `quit` to leave."
	msgQuit      = "You left the story. This room will close shortly."
	msgEnded     = "This session was ended. This room will close shortly."
	msgReset     = "Consent has been reset by staff. The story starts over."
	msgResumed   = "The narrator is back. Here is where you left off."
)

func consentPrompt(catalog *restraint.Catalog, offerable, previous []restraint.Kind) host.Message {
	if len(offerable) == 0 {
		return host.Message{Kind: host.KindPrompt, Text: msgNoOfferable}
	}

	var sb strings.Builder
	sb.WriteString(msgConsentIntro + "\n")
	for _, k := range offerable {
		sb.WriteString("- " + catalog.DisplayName(k) + "\n")
	}
	sb.WriteString(msgConsentHow)
	if len(previous) > 0 {
		sb.WriteString(" " + fmt.Sprintf(msgConsentKeep, consent.Render(previous, catalog)))
	}
	return host.Message{Kind: host.KindPrompt, Text: sb.String()}
}

// consentUtterance is what the narrator sees as the player's consent turn.
func consentUtterance(catalog *restraint.Catalog, allowed []restraint.Kind) string {
	if len(allowed) == 0 {
		return "I agree to no restraints."
	}
	return "I agree to: " + consent.Render(allowed, catalog) + "."
}

func narration(text string, choices []string) host.Message {
	return host.Message{Kind: host.KindNarration, Text: text, Choices: choices}
}

func notice(text string) host.Message {
	return host.Message{Kind: host.KindNotice, Text: text}
}

func errorMessage(text string) host.Message {
	return host.Message{Kind: host.KindError, Text: text}
}

func offer() host.Message {
	return host.Message{Kind: host.KindPrompt, Text: msgOffer}
}

func echo(author, text string) host.Message {
	return host.Message{Kind: host.KindEcho, Author: author, Text: text}
}

func statusText(catalog *restraint.Catalog, s *session.Session) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Phase: %s\n", s.Phase)
	theme := s.Theme
	if theme == "" {
		theme = "(not set)"
	}
	fmt.Fprintf(&sb, "Theme: %s\n", theme)

	allowed := consent.Render(s.AllowedRestraints, catalog)
	if !s.ConsentCommitted {
		allowed = "(awaiting consent)"
	} else if allowed == "" {
		allowed = "none"
	}
	fmt.Fprintf(&sb, "Allowed: %s\n", allowed)

	active := s.CurrentRestraints.Active()
	if len(active) == 0 {
		sb.WriteString("Restraints: none")
	} else {
		parts := make([]string, 0, len(active))
		for _, k := range active {
			parts = append(parts, fmt.Sprintf("%s %d/%d", catalog.DisplayName(k), s.Level(k), catalog.Max(k)))
		}
		sb.WriteString("Restraints: " + strings.Join(parts, ", "))
	}
	if s.Incapacitated {
		sb.WriteString("\nYou are completely restrained.")
	}
	return sb.String()
}
