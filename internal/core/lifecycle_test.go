package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selimk/Lobby/internal/domain"
	"github.com/selimk/Lobby/internal/store"
)

const testNamePattern = "%s's room"

func newTestLifecycle(t *testing.T) (*fakeBackend, *store.Store, *Lifecycle) {
	t.Helper()
	be := newFakeBackend()
	st := newTestStore(t)
	rec := NewReconciler(be)
	panels := NewPanelRenderer(be, st, 5*time.Millisecond, 75)
	sync := NewSynchronizer(be)
	lc := NewLifecycle(st, be, rec, panels, sync, testNamePattern)
	return be, st, lc
}

func TestJoinWithoutCreateChannelDoesNothing(t *testing.T) {
	t.Parallel()
	be, _, lc := newTestLifecycle(t)
	be.addChannel("some-room", "g1", "existing")

	lc.HandleVoiceJoin(VoiceJoin{GuildID: "g1", UserID: "u1", DisplayName: "Alice", ChannelID: "some-room"})

	be.mu.Lock()
	defer be.mu.Unlock()
	assert.Len(t, be.channels, 1, "no join-to-create channel configured, nothing spawns")
}

func TestJoinToCreateSpawnsEphemeralRoom(t *testing.T) {
	t.Parallel()
	be, st, lc := newTestLifecycle(t)
	be.addChannel("create", "g1", "➕ create").parentID = "cat-1"
	require.NoError(t, st.SetGuild("g1", &domain.GuildConfig{CreateChannelID: "create"}))
	require.NoError(t, st.SetNameFor("g1", "u1", &domain.NameTemplate{Name: "Lounge"}))
	be.join("create", "u1")

	lc.HandleVoiceJoin(VoiceJoin{GuildID: "g1", UserID: "u1", DisplayName: "Alice", ChannelID: "create"})

	info, err := be.ChannelInfo("room-1")
	require.NoError(t, err)
	assert.Equal(t, "Lounge", info.Name, "remembered name wins over the default pattern")
	assert.Equal(t, "cat-1", info.ParentID)
	assert.Equal(t, 1, info.MemberCount, "the joining user was moved in")

	cfg, err := st.Room("room-1")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, domain.UserID("u1"), cfg.OwnerID)
	assert.False(t, cfg.Persistent)

	// reconciliation and panel placement happen asynchronously
	require.Eventually(t, func() bool {
		return len(be.panelMessages("room-1")) == 1
	}, time.Second, 5*time.Millisecond)
	grants := grantsOf(t, be, "room-1")
	assert.True(t, grants["u1"].Allow)
}

func TestJoinToCreateUsesDefaultNameAndTemplate(t *testing.T) {
	t.Parallel()
	be, st, lc := newTestLifecycle(t)
	be.addChannel("create", "g1", "➕ create")
	require.NoError(t, st.SetGuild("g1", &domain.GuildConfig{CreateChannelID: "create"}))
	require.NoError(t, st.SetTemplate("g1", &domain.RoomTemplate{
		Mods:      []domain.UserID{"mod"},
		Allow:     []domain.UserID{},
		Deny:      []domain.UserID{"troll"},
		Locked:    true,
		UserLimit: 4,
	}))

	lc.HandleVoiceJoin(VoiceJoin{GuildID: "g1", UserID: "u2", DisplayName: "Bob", ChannelID: "create"})

	info, err := be.ChannelInfo("room-1")
	require.NoError(t, err)
	assert.Equal(t, "Bob's room", info.Name)
	assert.Equal(t, 4, info.UserLimit)

	cfg, err := st.Room("room-1")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, []domain.UserID{"mod"}, cfg.Mods)
	assert.Equal(t, []domain.UserID{"troll"}, cfg.Deny)
	assert.True(t, cfg.Locked)
}

func TestEmptyEphemeralRoomIsDestroyed(t *testing.T) {
	t.Parallel()
	be, st, lc := newTestLifecycle(t)
	be.addChannel("r1", "g1", "room")
	require.NoError(t, st.SetRoom("r1", domain.NewRoomConfig("u1", false)))

	lc.HandleVoiceLeave(VoiceLeave{GuildID: "g1", UserID: "u1", ChannelID: "r1"})

	cfg, err := st.Room("r1")
	require.NoError(t, err)
	assert.Nil(t, cfg, "config deleted")
	_, err = be.ChannelInfo("r1")
	assert.ErrorIs(t, err, ErrStale, "channel deleted")
}

func TestOccupiedEphemeralRoomSurvivesLeave(t *testing.T) {
	t.Parallel()
	be, st, lc := newTestLifecycle(t)
	be.addChannel("r1", "g1", "room")
	be.join("r1", "u2")
	require.NoError(t, st.SetRoom("r1", domain.NewRoomConfig("u1", false)))

	lc.HandleVoiceLeave(VoiceLeave{GuildID: "g1", UserID: "u1", ChannelID: "r1"})

	cfg, err := st.Room("r1")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestEmptyPersistentRoomSurvives(t *testing.T) {
	t.Parallel()
	be, st, lc := newTestLifecycle(t)
	be.addChannel("r1", "g1", "room")
	require.NoError(t, st.SetRoom("r1", domain.NewRoomConfig("u1", true)))

	lc.HandleVoiceLeave(VoiceLeave{GuildID: "g1", UserID: "u1", ChannelID: "r1"})

	cfg, err := st.Room("r1")
	require.NoError(t, err)
	assert.NotNil(t, cfg, "persistent rooms are never auto-destroyed")
	_, err = be.ChannelInfo("r1")
	assert.NoError(t, err)
}

func TestLeaveOnAlreadyDeletedChannelDropsRecords(t *testing.T) {
	t.Parallel()
	_, st, lc := newTestLifecycle(t)
	require.NoError(t, st.SetRoom("gone", domain.NewRoomConfig("u1", false)))

	lc.HandleVoiceLeave(VoiceLeave{GuildID: "g1", UserID: "u1", ChannelID: "gone"})

	cfg, err := st.Room("gone")
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestSetupIsGuarded(t *testing.T) {
	t.Parallel()
	be, st, lc := newTestLifecycle(t)
	be.addChannel("r1", "g1", "room")

	require.NoError(t, lc.Setup("g1", "r1", "admin"))

	cfg, err := st.Room("r1")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.True(t, cfg.Persistent)
	assert.Equal(t, domain.UserID("admin"), cfg.OwnerID)
	assert.Empty(t, cfg.Mods)
	assert.False(t, cfg.Locked)

	err = lc.Setup("g1", "r1", "admin")
	assert.ErrorIs(t, err, domain.ErrAlreadyManaged)
}

func TestSetupOnMissingChannel(t *testing.T) {
	t.Parallel()
	_, _, lc := newTestLifecycle(t)
	err := lc.Setup("g1", "nope", "admin")
	assert.ErrorIs(t, err, ErrStale)
}

func TestTeardownResetsEverythingButTheName(t *testing.T) {
	t.Parallel()
	be, st, lc := newTestLifecycle(t)
	be.addChannel("r1", "g1", "Club Room")
	require.NoError(t, lc.Setup("g1", "r1", "admin"))

	cfg, err := st.Room("r1")
	require.NoError(t, err)
	cfg.SetDeny([]domain.UserID{"troll"})
	cfg.UserLimit = 7
	require.NoError(t, st.SetRoom("r1", cfg))
	NewReconciler(be).Apply("g1", "r1", cfg)
	require.NoError(t, be.SetUserLimit("r1", 7))
	require.NoError(t, st.SetRoom("r1", cfg))

	require.NoError(t, lc.Teardown("r1"))

	info, err := be.ChannelInfo("r1")
	require.NoError(t, err)
	assert.Equal(t, "Club Room", info.Name, "name is the only thing preserved")
	assert.Zero(t, info.UserLimit)
	assert.Empty(t, grantsOf(t, be, "r1"))
	assert.Empty(t, be.panelMessages("r1"), "panel message removed")

	stored, err := st.Room("r1")
	require.NoError(t, err)
	assert.Nil(t, stored)

	assert.ErrorIs(t, lc.Teardown("r1"), domain.ErrNotManaged)
}

func TestRefreshPullsDriftAndRerenders(t *testing.T) {
	t.Parallel()
	be, st, lc := newTestLifecycle(t)
	be.addChannel("r1", "g1", "room")
	require.NoError(t, lc.Setup("g1", "r1", "owner"))

	// an admin edits the channel by hand behind the bot's back
	require.NoError(t, be.SetUserLimit("r1", 8))
	require.NoError(t, be.SetEveryoneConnect("g1", "r1", false))
	require.NoError(t, be.SetConnect("r1", "guest", true))

	require.NoError(t, lc.Refresh("r1"))

	cfg, err := st.Room("r1")
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.UserLimit)
	assert.True(t, cfg.Locked)
	assert.Equal(t, []domain.UserID{"guest"}, cfg.Allow)

	msgs := be.panelMessages("r1")
	require.Len(t, msgs, 1)
	assert.Equal(t, 8, msgs[0].view.UserLimit)

	assert.ErrorIs(t, lc.Refresh("unmanaged"), domain.ErrNotManaged)
}

// explodingBackend blows up on any channel lookup, standing in for a bug
// that would otherwise escape the voice event path.
type explodingBackend struct {
	*fakeBackend
}

func (b *explodingBackend) ChannelInfo(id domain.RoomID) (*ChannelInfo, error) {
	panic("channel lookup exploded")
}

func TestVoiceHandlersNeverLetPanicsEscape(t *testing.T) {
	t.Parallel()
	be := newFakeBackend()
	st := newTestStore(t)
	eb := &explodingBackend{fakeBackend: be}
	panels := NewPanelRenderer(eb, st, 5*time.Millisecond, 75)
	lc := NewLifecycle(st, eb, NewReconciler(eb), panels, NewSynchronizer(eb), testNamePattern)

	be.addChannel("create", "g1", "➕ create")
	require.NoError(t, st.SetGuild("g1", &domain.GuildConfig{CreateChannelID: "create"}))

	assert.NotPanics(t, func() {
		lc.HandleVoiceJoin(VoiceJoin{GuildID: "g1", UserID: "u1", DisplayName: "Alice", ChannelID: "create"})
	})

	require.NoError(t, st.SetRoom("r1", domain.NewRoomConfig("u1", false)))
	assert.NotPanics(t, func() {
		lc.HandleVoiceLeave(VoiceLeave{GuildID: "g1", UserID: "u1", ChannelID: "r1"})
	})
}

func TestCommitChangeFeedsTemplateFromEphemeralOnly(t *testing.T) {
	t.Parallel()
	be, st, lc := newTestLifecycle(t)
	be.addChannel("r1", "g1", "room")
	be.addChannel("r2", "g1", "persistent")

	eph := domain.NewRoomConfig("u1", false)
	eph.Locked = true
	eph.UserLimit = 2
	require.NoError(t, st.SetRoom("r1", eph))
	lc.CommitChange("g1", "r1", eph)

	tpl, err := st.Template("g1")
	require.NoError(t, err)
	require.NotNil(t, tpl)
	assert.True(t, tpl.Locked)
	assert.Equal(t, 2, tpl.UserLimit)

	per := domain.NewRoomConfig("u2", true)
	per.Locked = false
	per.UserLimit = 9
	require.NoError(t, st.SetRoom("r2", per))
	lc.CommitChange("g1", "r2", per)

	tpl, err = st.Template("g1")
	require.NoError(t, err)
	assert.True(t, tpl.Locked, "persistent rooms never influence the template")
	assert.Equal(t, 2, tpl.UserLimit)
}
