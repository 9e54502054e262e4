package slack

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/escape-engine/internal/host"
)

// fakeAPI serves canned Slack Web API responses keyed by method name and
// records the form of every call.
type fakeAPI struct {
	mu        sync.Mutex
	responses map[string]any
	calls     map[string][]map[string]string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *Host) {
	t.Helper()
	f := &fakeAPI{
		responses: make(map[string]any),
		calls:     make(map[string][]map[string]string),
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	h := New(Config{
		BotToken:      "xoxb-test",
		AppToken:      "xapp-test",
		ParentChannel: "CPARENT",
		APIURL:        srv.URL + "/",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f, h
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	method := strings.TrimPrefix(r.URL.Path, "/")
	form := make(map[string]string)
	for k := range r.Form {
		form[k] = r.Form.Get(k)
	}

	f.mu.Lock()
	f.calls[method] = append(f.calls[method], form)
	resp, ok := f.responses[method]
	f.mu.Unlock()

	if !ok {
		resp = map[string]any{"ok": true}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeAPI) set(method string, resp any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[method] = resp
}

func (f *fakeAPI) callsTo(method string) []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func slackErr(code string) map[string]any {
	return map[string]any{"ok": false, "error": code}
}

func TestCreateRoom(t *testing.T) {
	f, h := newFakeAPI(t)
	f.set("conversations.create", map[string]any{"ok": true, "channel": map[string]any{"id": "C123"}})
	f.set("conversations.invite", map[string]any{"ok": true, "channel": map[string]any{"id": "C123"}})

	id, err := h.CreateRoom(context.Background(), host.Player{ID: "U1", DisplayName: "Robin"}, "escape-Robin")
	require.NoError(t, err)
	assert.Equal(t, "C123", id)

	create := f.callsTo("conversations.create")
	require.Len(t, create, 1)
	assert.Equal(t, "true", create[0]["is_private"])
	assert.True(t, strings.HasPrefix(create[0]["name"], "escape-robin-"))

	invite := f.callsTo("conversations.invite")
	require.Len(t, invite, 1)
	assert.Equal(t, "U1", invite[0]["users"])

	note := f.callsTo("chat.postMessage")
	require.Len(t, note, 1)
	assert.Equal(t, "CPARENT", note[0]["channel"])
	assert.Contains(t, note[0]["text"], "<@U1>")
}

func TestCreateRoom_InviteFailureArchives(t *testing.T) {
	f, h := newFakeAPI(t)
	f.set("conversations.create", map[string]any{"ok": true, "channel": map[string]any{"id": "C123"}})
	f.set("conversations.invite", slackErr("user_not_found"))

	_, err := h.CreateRoom(context.Background(), host.Player{ID: "U1"}, "escape-U1")
	require.Error(t, err)
	require.Len(t, f.callsTo("conversations.archive"), 1)
	assert.Equal(t, "C123", f.callsTo("conversations.archive")[0]["channel"])
}

func TestDestroyRoom(t *testing.T) {
	tests := []struct {
		name    string
		resp    any
		wantErr bool
	}{
		{"archived", map[string]any{"ok": true}, false},
		{"already archived", slackErr("already_archived"), false},
		{"missing", slackErr("channel_not_found"), false},
		{"denied", slackErr("not_in_channel"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, h := newFakeAPI(t)
			f.set("conversations.archive", tt.resp)
			err := h.DestroyRoom(context.Background(), "C1")
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestRoles(t *testing.T) {
	f, h := newFakeAPI(t)
	f.set("usergroups.list", map[string]any{"ok": true, "usergroups": []map[string]any{
		{"id": "S1", "users": []string{"U1", "U2"}},
		{"id": "S2", "users": []string{"U2"}},
		{"id": "S3", "users": []string{"U1"}},
	}})

	roles, err := h.Roles(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S3"}, roles)
}

func TestAddRemoveRole(t *testing.T) {
	f, h := newFakeAPI(t)
	ctx := context.Background()
	f.set("usergroups.users.list", map[string]any{"ok": true, "users": []string{"U2", "U3"}})

	require.NoError(t, h.AddRole(ctx, "U1", "S1"))
	update := f.callsTo("usergroups.users.update")
	require.Len(t, update, 1)
	assert.Equal(t, "U2,U3,U1", update[0]["users"])
	assert.Equal(t, "S1", update[0]["usergroup"])

	require.NoError(t, h.RemoveRole(ctx, "U2", "S1"))
	update = f.callsTo("usergroups.users.update")
	require.Len(t, update, 2)
	assert.Equal(t, "U3", update[1]["users"])

	// no-ops skip the update call
	require.NoError(t, h.AddRole(ctx, "U2", "S1"))
	require.NoError(t, h.RemoveRole(ctx, "U9", "S1"))
	assert.Len(t, f.callsTo("usergroups.users.update"), 2)
}

func TestRemoveRole_Unmanaged(t *testing.T) {
	f, h := newFakeAPI(t)
	ctx := context.Background()

	f.set("usergroups.users.list", slackErr("no_such_subteam"))
	assert.ErrorIs(t, h.RemoveRole(ctx, "U1", "S1"), host.ErrUnmanagedRole)

	f.set("usergroups.users.list", map[string]any{"ok": true, "users": []string{"U1"}})
	assert.ErrorIs(t, h.RemoveRole(ctx, "U1", "S1"), host.ErrUnmanagedRole, "a group cannot be emptied")

	f.set("usergroups.users.list", map[string]any{"ok": true, "users": []string{"U1", "U2"}})
	f.set("usergroups.users.update", slackErr("permission_denied"))
	assert.ErrorIs(t, h.RemoveRole(ctx, "U1", "S1"), host.ErrUnmanagedRole)
}

func TestSend(t *testing.T) {
	f, h := newFakeAPI(t)
	ctx := context.Background()

	msg := host.Message{Kind: host.KindNarration, Text: "A hall.", Choices: []string{"left", "right"}}
	require.NoError(t, h.Send(ctx, "C1", msg))
	posts := f.callsTo("chat.postMessage")
	require.Len(t, posts, 1)
	assert.Equal(t, "C1", posts[0]["channel"])
	assert.Equal(t, "A hall.\n\n1. left\n2. right", posts[0]["text"])

	f.set("chat.postMessage", slackErr("channel_not_found"))
	err := h.Send(ctx, "C404", msg)
	assert.True(t, errors.Is(err, host.ErrRoomNotFound))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "_Escaped._", format(host.Message{Kind: host.KindNotice, Text: "Escaped."}))
	assert.Equal(t, "*Robin:* mmph", format(host.Message{Kind: host.KindEcho, Author: "Robin", Text: "mmph"}))
	assert.Equal(t, ":warning: oops", format(host.Message{Kind: host.KindError, Text: "oops"}))
	assert.Equal(t, "Pick restraints", format(host.Message{Kind: host.KindPrompt, Text: "Pick restraints"}))
}

func TestRoomLink(t *testing.T) {
	_, h := newFakeAPI(t)
	assert.Equal(t, "<#C0ROOM42>", h.RoomLink("C0ROOM42"))
}

func TestChannelName(t *testing.T) {
	name := channelName("escape-Robin the Bold!")
	assert.True(t, strings.HasPrefix(name, "escape-robin-the-bold-"), name)
	assert.Len(t, name, len("escape-robin-the-bold-")+8)
	assert.NotEqual(t, name, channelName("escape-Robin the Bold!"))

	assert.True(t, strings.HasPrefix(channelName("!!!"), "escape-"))
	assert.LessOrEqual(t, len(channelName(strings.Repeat("a", 200))), 80)
}

func TestCommandEvent(t *testing.T) {
	ev := commandEvent(slack.SlashCommand{
		Command:   "/start",
		Text:      "haunted library",
		UserID:    "U1",
		UserName:  "robin",
		ChannelID: "C1",
	})
	assert.Equal(t, host.EventCommand, ev.Kind)
	assert.Equal(t, "/start haunted library", ev.Text)
	assert.Equal(t, "U1", ev.Player.ID)
	assert.Equal(t, "C1", ev.RoomID)

	ev = commandEvent(slack.SlashCommand{Command: "/status"})
	assert.Equal(t, "/status", ev.Text)
}

func TestMessageEvent(t *testing.T) {
	base := slackevents.MessageEvent{User: "U1", Channel: "C1", Text: "open door", TimeStamp: "1.0"}

	ev, ok := messageEvent(&base, "UBOT")
	require.True(t, ok)
	assert.Equal(t, host.EventMessage, ev.Kind)
	assert.Equal(t, "open door", ev.Text)
	assert.Equal(t, "C1", ev.RoomID)

	skipped := []func(m *slackevents.MessageEvent){
		func(m *slackevents.MessageEvent) { m.BotID = "B1" },
		func(m *slackevents.MessageEvent) { m.SubType = "message_changed" },
		func(m *slackevents.MessageEvent) { m.User = "UBOT" },
		func(m *slackevents.MessageEvent) { m.User = "" },
		func(m *slackevents.MessageEvent) { m.ThreadTimeStamp = "0.5" },
	}
	for i, mutate := range skipped {
		m := base
		mutate(&m)
		_, ok := messageEvent(&m, "UBOT")
		assert.False(t, ok, "case %d", i)
	}
}
