// Package slack hosts the engine on Slack using Socket Mode.
//
// Play rooms are private channels created by the bot. Roles are Slack user
// groups; the bot token needs the usergroups:write scope for role swaps.
// Slash commands and room messages are forwarded to a host.Handler.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/jwebster45206/escape-engine/internal/host"
)

// Config holds the Slack credentials and options.
type Config struct {
	BotToken string
	AppToken string
	// ParentChannel, when set, receives a public note each time a room opens.
	ParentChannel string
	// APIURL overrides the Slack Web API endpoint.
	APIURL string
}

// Host implements host.Platform on Slack.
type Host struct {
	api     *slack.Client
	socket  *socketmode.Client
	parent  string
	logger  *slog.Logger
	botUser string

	mu    sync.Mutex
	names map[string]string // user id -> display name
}

var _ host.Platform = (*Host)(nil)

func New(cfg Config, logger *slog.Logger) *Host {
	opts := []slack.Option{slack.OptionAppLevelToken(cfg.AppToken)}
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}
	api := slack.New(cfg.BotToken, opts...)

	return &Host{
		api:    api,
		socket: socketmode.New(api),
		parent: cfg.ParentChannel,
		logger: logger.With("host", "slack"),
		names:  make(map[string]string),
	}
}

// Run connects via Socket Mode and feeds events to handler. It blocks until
// ctx is cancelled or the connection fails for good.
func (h *Host) Run(ctx context.Context, handler host.Handler) error {
	auth, err := h.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test failed: %w", err)
	}
	h.botUser = auth.UserID
	h.logger.Info("Slack authenticated", "bot_user", auth.UserID, "team", auth.Team)

	go h.eventLoop(ctx, handler)
	return h.socket.RunContext(ctx)
}

func (h *Host) eventLoop(ctx context.Context, handler host.Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-h.socket.Events:
			if !ok {
				return
			}
			h.handleSocketEvent(ctx, handler, evt)
		}
	}
}

func (h *Host) handleSocketEvent(ctx context.Context, handler host.Handler, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		h.logger.Info("Slack connecting")
	case socketmode.EventTypeConnected:
		h.logger.Info("Slack connected")
	case socketmode.EventTypeConnectionError:
		h.logger.Warn("Slack connection error, will retry")

	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			return
		}
		// Slack wants the ack within 3 seconds; /start takes longer.
		h.socket.Ack(*evt.Request)
		go h.handleCommand(ctx, handler, cmd)

	case socketmode.EventTypeEventsAPI:
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		h.socket.Ack(*evt.Request)
		if apiEvent.Type != slackevents.CallbackEvent {
			return
		}
		if msg, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent); ok {
			// Messages stay on this goroutine so a player's actions keep their order.
			h.handleMessage(ctx, handler, msg)
		}

	case socketmode.EventTypeInteractive:
		h.socket.Ack(*evt.Request)
	}
}

func (h *Host) handleCommand(ctx context.Context, handler host.Handler, cmd slack.SlashCommand) {
	ev := commandEvent(cmd)
	ev.Player.DisplayName = h.displayName(ctx, cmd.UserID, cmd.UserName)

	log := h.logger.With("command", cmd.Command, "player_id", cmd.UserID, "channel", cmd.ChannelID)
	reply, err := handler.HandleEvent(ctx, ev)
	if err != nil {
		log.Error("Command failed", "error", err)
	}
	if reply == "" {
		return
	}

	if cmd.ResponseURL != "" {
		werr := slack.PostWebhookContext(ctx, cmd.ResponseURL, &slack.WebhookMessage{
			Text:         reply,
			ResponseType: "ephemeral",
		})
		if werr == nil {
			return
		}
		log.Warn("Failed to post command reply", "error", werr)
	}
	if _, err := h.api.PostEphemeralContext(ctx, cmd.ChannelID, cmd.UserID, slack.MsgOptionText(reply, false)); err != nil {
		log.Warn("Failed to post ephemeral reply", "error", err)
	}
}

func (h *Host) handleMessage(ctx context.Context, handler host.Handler, msg *slackevents.MessageEvent) {
	ev, ok := messageEvent(msg, h.botUser)
	if !ok {
		return
	}
	ev.Player.DisplayName = h.displayName(ctx, msg.User, "")
	if _, err := handler.HandleEvent(ctx, ev); err != nil {
		h.logger.Error("Message handling failed", "error", err, "player_id", msg.User, "channel", msg.Channel)
	}
}

// commandEvent converts a slash command to a host event. The command word and
// its text are joined so "/start" + "haunted library" reads as one command.
func commandEvent(cmd slack.SlashCommand) host.Event {
	text := strings.TrimSpace(cmd.Command + " " + cmd.Text)
	return host.Event{
		Kind:   host.EventCommand,
		Player: host.Player{ID: cmd.UserID, DisplayName: cmd.UserName},
		RoomID: cmd.ChannelID,
		Text:   text,
	}
}

// messageEvent converts a channel message. Bot posts, edits, joins and
// thread replies are ignored.
func messageEvent(msg *slackevents.MessageEvent, botUser string) (host.Event, bool) {
	if msg.BotID != "" || msg.SubType != "" || msg.User == "" || msg.User == botUser {
		return host.Event{}, false
	}
	if msg.ThreadTimeStamp != "" && msg.ThreadTimeStamp != msg.TimeStamp {
		return host.Event{}, false
	}
	return host.Event{
		Kind:   host.EventMessage,
		Player: host.Player{ID: msg.User},
		RoomID: msg.Channel,
		Text:   msg.Text,
	}, true
}

func (h *Host) displayName(ctx context.Context, userID, fallback string) string {
	h.mu.Lock()
	name, ok := h.names[userID]
	h.mu.Unlock()
	if ok {
		return name
	}

	user, err := h.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		h.logger.Debug("User lookup failed", "player_id", userID, "error", err)
		if fallback != "" {
			return fallback
		}
		return userID
	}
	name = user.Profile.DisplayName
	if name == "" {
		name = user.RealName
	}
	if name == "" {
		name = user.Name
	}

	h.mu.Lock()
	h.names[userID] = name
	h.mu.Unlock()
	return name
}

var invalidChannelChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// channelName turns a room name into a valid, unique Slack channel name.
func channelName(name string) string {
	base := invalidChannelChars.ReplaceAllString(strings.ToLower(name), "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "escape"
	}
	if len(base) > 70 {
		base = base[:70]
	}
	return base + "-" + uuid.NewString()[:8]
}

func (h *Host) CreateRoom(ctx context.Context, player host.Player, name string) (string, error) {
	ch, err := h.api.CreateConversationContext(ctx, slack.CreateConversationParams{
		ChannelName: channelName(name),
		IsPrivate:   true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create channel: %w", err)
	}

	if _, err := h.api.InviteUsersToConversationContext(ctx, ch.ID, player.ID); err != nil {
		if aerr := h.api.ArchiveConversationContext(ctx, ch.ID); aerr != nil {
			h.logger.Warn("Failed to archive channel after invite failure", "channel", ch.ID, "error", aerr)
		}
		return "", fmt.Errorf("failed to invite player: %w", err)
	}

	if h.parent != "" {
		text := fmt.Sprintf("<@%s> started an adventure.", player.ID)
		if _, _, err := h.api.PostMessageContext(ctx, h.parent, slack.MsgOptionText(text, false)); err != nil {
			h.logger.Warn("Failed to post start note", "channel", h.parent, "error", err)
		}
	}
	return ch.ID, nil
}

func (h *Host) DestroyRoom(ctx context.Context, roomID string) error {
	err := h.api.ArchiveConversationContext(ctx, roomID)
	switch slackError(err) {
	case "":
		return nil
	case "already_archived", "channel_not_found":
		return nil
	}
	return fmt.Errorf("failed to archive channel: %w", err)
}

func (h *Host) Roles(ctx context.Context, playerID string) ([]string, error) {
	groups, err := h.api.GetUserGroupsContext(ctx, slack.GetUserGroupsOptionIncludeUsers(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list user groups: %w", err)
	}
	var roles []string
	for _, g := range groups {
		if slices.Contains(g.Users, playerID) {
			roles = append(roles, g.ID)
		}
	}
	return roles, nil
}

func (h *Host) AddRole(ctx context.Context, playerID, roleID string) error {
	return h.updateMembers(ctx, roleID, func(members []string) []string {
		if slices.Contains(members, playerID) {
			return nil
		}
		return append(members, playerID)
	})
}

func (h *Host) RemoveRole(ctx context.Context, playerID, roleID string) error {
	return h.updateMembers(ctx, roleID, func(members []string) []string {
		if !slices.Contains(members, playerID) {
			return nil
		}
		return slices.DeleteFunc(members, func(m string) bool { return m == playerID })
	})
}

// updateMembers rewrites a user group's membership. edit returns nil when no
// change is needed.
func (h *Host) updateMembers(ctx context.Context, groupID string, edit func([]string) []string) error {
	members, err := h.api.GetUserGroupMembersContext(ctx, groupID)
	if err != nil {
		return roleError(err)
	}
	next := edit(slices.Clone(members))
	if next == nil {
		return nil
	}
	if len(next) == 0 {
		// Slack refuses to empty a user group.
		return fmt.Errorf("%w: group %s would be left empty", host.ErrUnmanagedRole, groupID)
	}
	if _, err := h.api.UpdateUserGroupMembersContext(ctx, groupID, strings.Join(next, ",")); err != nil {
		return roleError(err)
	}
	return nil
}

func roleError(err error) error {
	switch slackError(err) {
	case "no_such_subteam", "permission_denied", "not_allowed_token_type", "missing_scope":
		return fmt.Errorf("%w: %w", host.ErrUnmanagedRole, err)
	}
	return fmt.Errorf("user group update failed: %w", err)
}

func slackError(err error) string {
	if err == nil {
		return ""
	}
	var serr slack.SlackErrorResponse
	if errors.As(err, &serr) {
		return serr.Err
	}
	return err.Error()
}

func (h *Host) Send(ctx context.Context, roomID string, msg host.Message) error {
	_, _, err := h.api.PostMessageContext(ctx, roomID, slack.MsgOptionText(format(msg), false))
	if slackError(err) == "channel_not_found" || slackError(err) == "is_archived" {
		return fmt.Errorf("%w: %s", host.ErrRoomNotFound, roomID)
	}
	if err != nil {
		return fmt.Errorf("failed to post message: %w", err)
	}
	return nil
}

// RoomLink renders a room as a channel mention.
func (h *Host) RoomLink(roomID string) string {
	return "<#" + roomID + ">"
}

// format renders a message as Slack mrkdwn.
func format(msg host.Message) string {
	switch msg.Kind {
	case host.KindNotice:
		return "_" + msg.Text + "_"
	case host.KindEcho:
		return fmt.Sprintf("*%s:* %s", msg.Author, msg.Text)
	case host.KindError:
		return ":warning: " + msg.Text
	}
	return msg.Body()
}
