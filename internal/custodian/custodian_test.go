package custodian

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/escape-engine/internal/host"
	"github.com/jwebster45206/escape-engine/internal/host/hostfake"
	"github.com/jwebster45206/escape-engine/internal/storage"
	"github.com/jwebster45206/escape-engine/pkg/session"
)

var prompt = host.Message{Kind: host.KindPrompt, Text: "consent?"}

func newTestCustodian(cfg Config) (*Custodian, *hostfake.Platform, *storage.MockStorage) {
	p := hostfake.New()
	st := storage.NewMockStorage()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(p, st, cfg, log), p, st
}

func baseConfig() Config {
	return Config{
		PlayerRole: "R-player",
		StaffRoles: []string{"R-staff"},
	}
}

func TestSetup_SwapsRoles(t *testing.T) {
	c, p, st := newTestCustodian(baseConfig())
	p.SetRoles("U1", "R-member", "R-artist")

	s, err := c.Setup(context.Background(), host.Player{ID: "U1", DisplayName: "Robin"}, " haunted library ", prompt)
	require.NoError(t, err)

	assert.Equal(t, session.PhaseAwaitingConsent, s.Phase)
	assert.Equal(t, "haunted library", s.Theme)
	assert.Empty(t, s.AllowedRestraints)
	assert.Equal(t, []string{"R-member", "R-artist"}, s.PriorRoles)
	assert.False(t, s.Staff)
	assert.Equal(t, []string{"R-player"}, p.RolesOf("U1"))
	assert.True(t, p.RoomExists(s.RoomID))

	stored := st.Get(s.RoomID)
	require.NotNil(t, stored)
	assert.Equal(t, s.PriorRoles, stored.PriorRoles)

	last, ok := p.Last(s.RoomID)
	require.True(t, ok)
	assert.Equal(t, prompt, last)
}

func TestSetup_ManagedRolesFilter(t *testing.T) {
	cfg := baseConfig()
	cfg.ManagedRoles = []string{"R-member"}
	c, p, _ := newTestCustodian(cfg)
	p.SetRoles("U1", "R-member", "R-admin-owned")

	s, err := c.Setup(context.Background(), host.Player{ID: "U1"}, "", prompt)
	require.NoError(t, err)

	assert.Equal(t, []string{"R-member"}, s.PriorRoles)
	assert.ElementsMatch(t, []string{"R-admin-owned", "R-player"}, p.RolesOf("U1"))
}

func TestSetup_StaffKeepRoles(t *testing.T) {
	c, p, _ := newTestCustodian(baseConfig())
	p.SetRoles("U9", "R-staff", "R-member")

	s, err := c.Setup(context.Background(), host.Player{ID: "U9"}, "", prompt)
	require.NoError(t, err)

	assert.True(t, s.Staff)
	assert.Empty(t, s.PriorRoles)
	assert.Equal(t, []string{"R-staff", "R-member"}, p.RolesOf("U9"))
	assert.Empty(t, p.AddRoleCalls)
	assert.Empty(t, p.RemoveRoleCalls)
	assert.True(t, c.IsStaff(context.Background(), "U9"))
}

func TestSetup_RoleRemovalFailureNotRecorded(t *testing.T) {
	c, p, _ := newTestCustodian(baseConfig())
	p.SetRoles("U1", "R-member", "R-locked")
	p.RemoveRoleFunc = func(ctx context.Context, playerID, roleID string) error {
		if roleID == "R-locked" {
			return host.ErrUnmanagedRole
		}
		return nil
	}

	s, err := c.Setup(context.Background(), host.Player{ID: "U1"}, "", prompt)
	require.NoError(t, err)
	assert.Equal(t, []string{"R-member"}, s.PriorRoles)
}

func TestSetup_PersistenceFailureRollsBack(t *testing.T) {
	c, p, st := newTestCustodian(baseConfig())
	p.SetRoles("U1", "R-member")
	st.PutFunc = func(ctx context.Context, s *session.Session) error {
		return errors.New("disk full")
	}

	s, err := c.Setup(context.Background(), host.Player{ID: "U1"}, "", prompt)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, storage.ErrPersistence)

	assert.Equal(t, []string{"R-member"}, p.RolesOf("U1"))
	require.Len(t, p.CreateRoomCalls, 1)
	assert.Len(t, p.DestroyRoomCalls, 1)
	assert.Empty(t, p.SentMessages, "no prompt before the session is durable")
}

func TestSetup_CreateRoomFailure(t *testing.T) {
	c, p, st := newTestCustodian(baseConfig())
	p.CreateRoomFunc = func(ctx context.Context, player host.Player, name string) (string, error) {
		return "", errors.New("rate limited")
	}

	_, err := c.Setup(context.Background(), host.Player{ID: "U1"}, "", prompt)
	assert.Error(t, err)
	puts, _ := st.Calls()
	assert.Empty(t, puts)
}

func TestTeardown_RestoresAndIsIdempotent(t *testing.T) {
	c, p, st := newTestCustodian(baseConfig())
	p.SetRoles("U1", "R-member", "R-artist")
	ctx := context.Background()

	s, err := c.Setup(ctx, host.Player{ID: "U1"}, "", prompt)
	require.NoError(t, err)
	s.Phase = session.PhaseWon

	require.NoError(t, c.Teardown(ctx, s))
	assert.ElementsMatch(t, []string{"R-member", "R-artist"}, p.RolesOf("U1"))
	assert.False(t, p.RoomExists(s.RoomID))
	assert.Nil(t, st.Get(s.RoomID))

	adds, removes, destroys := len(p.AddRoleCalls), len(p.RemoveRoleCalls), len(p.DestroyRoomCalls)
	_, deletes := st.Calls()

	require.NoError(t, c.Teardown(ctx, s))
	assert.Len(t, p.AddRoleCalls, adds)
	assert.Len(t, p.RemoveRoleCalls, removes)
	assert.Len(t, p.DestroyRoomCalls, destroys)
	_, deletesAfter := st.Calls()
	assert.Equal(t, deletes, deletesAfter)
}

func TestTeardown_RoleFailuresDoNotStopIt(t *testing.T) {
	c, p, st := newTestCustodian(baseConfig())
	p.AddRoleFunc = func(ctx context.Context, playerID, roleID string) error {
		return errors.New("role deleted")
	}
	p.RemoveRoleFunc = func(ctx context.Context, playerID, roleID string) error {
		return host.ErrUnmanagedRole
	}

	s := session.New("room-x", "U1", "Robin", "")
	s.PriorRoles = []string{"R-gone"}
	s.Phase = session.PhaseAborted
	st.Seed(s)

	require.NoError(t, c.Teardown(context.Background(), s))
	assert.Nil(t, st.Get("room-x"))
	assert.Equal(t, []string{"room-x"}, p.DestroyRoomCalls)
}

func TestTeardown_DeleteFailureIsRetried(t *testing.T) {
	c, p, st := newTestCustodian(baseConfig())
	ctx := context.Background()

	s := session.New("room-x", "U1", "Robin", "")
	s.PriorRoles = []string{"R-member"}
	s.Phase = session.PhaseWon
	st.Seed(s)

	failures := 1
	st.DeleteFunc = func(ctx context.Context, roomID string) error {
		if failures > 0 {
			failures--
			return errors.New("io error")
		}
		return nil
	}

	err := c.Teardown(ctx, s)
	assert.ErrorIs(t, err, storage.ErrPersistence)
	assert.NotNil(t, st.Get("room-x"))
	assert.Equal(t, []string{"room-x"}, p.DestroyRoomCalls)
	adds, removes := len(p.AddRoleCalls), len(p.RemoveRoleCalls)

	require.NoError(t, c.Teardown(ctx, s))
	assert.Nil(t, st.Get("room-x"), "second call deletes the record")
	assert.Equal(t, []string{"room-x"}, p.DestroyRoomCalls, "room destroyed once")
	assert.Len(t, p.AddRoleCalls, adds, "roles restored once")
	assert.Len(t, p.RemoveRoleCalls, removes)

	_, deletes := st.Calls()
	require.NoError(t, c.Teardown(ctx, s))
	_, deletesAfter := st.Calls()
	assert.Equal(t, deletes, deletesAfter, "no delete once it succeeded")
}

func TestTeardown_GracePeriod(t *testing.T) {
	cfg := baseConfig()
	cfg.GracePeriod = 20 * time.Millisecond
	c, p, _ := newTestCustodian(cfg)
	ctx := context.Background()

	s, err := c.Setup(ctx, host.Player{ID: "U1"}, "", prompt)
	require.NoError(t, err)
	require.NoError(t, c.Teardown(ctx, s))

	assert.True(t, p.RoomExists(s.RoomID), "room stays readable during the grace period")
	assert.Eventually(t, func() bool { return !p.RoomExists(s.RoomID) }, time.Second, 5*time.Millisecond)
	c.Close()
}

func TestClose_FlushesPendingRooms(t *testing.T) {
	cfg := baseConfig()
	cfg.GracePeriod = time.Hour
	c, p, _ := newTestCustodian(cfg)
	ctx := context.Background()

	s, err := c.Setup(ctx, host.Player{ID: "U1"}, "", prompt)
	require.NoError(t, err)
	require.NoError(t, c.Teardown(ctx, s))
	require.True(t, p.RoomExists(s.RoomID))

	c.Close()
	assert.False(t, p.RoomExists(s.RoomID))
}
