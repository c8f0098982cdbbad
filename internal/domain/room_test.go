package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intersects(a, b []UserID) bool {
	set := make(map[UserID]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

func TestAllowDenyDisjoint(t *testing.T) {
	t.Parallel()

	t.Run("allow evicts from deny", func(t *testing.T) {
		t.Parallel()
		cfg := NewRoomConfig("owner", false)
		cfg.SetDeny([]UserID{"a", "b", "c"})
		cfg.SetAllow([]UserID{"b", "d"})

		assert.Equal(t, []UserID{"b", "d"}, cfg.Allow)
		assert.Equal(t, []UserID{"a", "c"}, cfg.Deny)
		assert.False(t, intersects(cfg.Allow, cfg.Deny))
	})

	t.Run("deny evicts from allow", func(t *testing.T) {
		t.Parallel()
		cfg := NewRoomConfig("owner", false)
		cfg.SetAllow([]UserID{"a", "b"})
		cfg.SetDeny([]UserID{"a"})

		assert.Equal(t, []UserID{"b"}, cfg.Allow)
		assert.Equal(t, []UserID{"a"}, cfg.Deny)
		assert.False(t, intersects(cfg.Allow, cfg.Deny))
	})

	t.Run("stays disjoint over repeated swaps", func(t *testing.T) {
		t.Parallel()
		cfg := NewRoomConfig("owner", false)
		for i := 0; i < 5; i++ {
			cfg.SetAllow([]UserID{"x", "y"})
			cfg.SetDeny([]UserID{"y", "z"})
		}
		assert.False(t, intersects(cfg.Allow, cfg.Deny))
	})
}

func TestListCapsAndDedup(t *testing.T) {
	t.Parallel()

	cfg := NewRoomConfig("owner", false)

	mods := make([]UserID, 0, 15)
	for i := 0; i < 15; i++ {
		mods = append(mods, UserID(rune('a'+i)))
	}
	cfg.SetMods(mods)
	assert.Len(t, cfg.Mods, MaxMods)

	cfg.SetAllow([]UserID{"u1", "u1", "", "u2"})
	assert.Equal(t, []UserID{"u1", "u2"}, cfg.Allow)
}

func TestDesiredManaged(t *testing.T) {
	t.Parallel()

	cfg := NewRoomConfig("owner", false)
	cfg.SetMods([]UserID{"m1"})
	cfg.SetAllow([]UserID{"a1"})
	cfg.SetDeny([]UserID{"d1"})

	require.Equal(t, []UserID{"owner", "m1", "a1", "d1"}, cfg.DesiredManaged())

	// owner listed twice collapses to one entry
	cfg.SetAllow([]UserID{"owner", "a1"})
	assert.Equal(t, []UserID{"owner", "m1", "a1", "d1"}, cfg.DesiredManaged())
}

func TestClearKeepsOwnershipAndPersistence(t *testing.T) {
	t.Parallel()

	cfg := NewRoomConfig("owner", true)
	cfg.SetMods([]UserID{"m"})
	cfg.SetDeny([]UserID{"d"})
	cfg.Locked = true
	cfg.UserLimit = 5

	cfg.Clear()

	assert.Empty(t, cfg.Mods)
	assert.Empty(t, cfg.Allow)
	assert.Empty(t, cfg.Deny)
	assert.False(t, cfg.Locked)
	assert.Zero(t, cfg.UserLimit)
	assert.Equal(t, UserID("owner"), cfg.OwnerID)
	assert.True(t, cfg.Persistent)
}

func TestTemplateRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := NewRoomConfig("owner", false)
	cfg.SetMods([]UserID{"m"})
	cfg.SetAllow([]UserID{"a"})
	cfg.SetDeny([]UserID{"d"})
	cfg.Locked = true
	cfg.UserLimit = 7

	tpl := TemplateOf(cfg)
	next := tpl.Apply("newowner")

	assert.Equal(t, UserID("newowner"), next.OwnerID)
	assert.False(t, next.Persistent)
	assert.Equal(t, cfg.Mods, next.Mods)
	assert.Equal(t, cfg.Allow, next.Allow)
	assert.Equal(t, cfg.Deny, next.Deny)
	assert.True(t, next.Locked)
	assert.Equal(t, 7, next.UserLimit)
}
