package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/selimk/Lobby/internal/domain"
	"github.com/selimk/Lobby/internal/store"
)

// PanelRenderer keeps exactly one live, pinned control message per room.
// Rapid successive config changes are coalesced by a per-room timer so a
// burst of panel interactions produces a single message edit.
type PanelRenderer struct {
	be       Backend
	store    *store.Store
	debounce time.Duration
	scan     int

	mu     sync.Mutex
	timers map[domain.RoomID]*time.Timer
}

func NewPanelRenderer(be Backend, st *store.Store, debounce time.Duration, scan int) *PanelRenderer {
	return &PanelRenderer{
		be:       be,
		store:    st,
		debounce: debounce,
		scan:     scan,
		timers:   make(map[domain.RoomID]*time.Timer),
	}
}

func viewOf(room domain.RoomID, cfg *domain.RoomConfig) PanelView {
	return PanelView{
		RoomID:    room,
		Locked:    cfg.Locked,
		UserLimit: cfg.UserLimit,
		OwnerID:   cfg.OwnerID,
		Mods:      cfg.Mods,
		Allow:     cfg.Allow,
		Deny:      cfg.Deny,
	}
}

// Schedule queues a debounced render for the room. A pending timer is
// replaced, not stacked, so only the final state of a burst is rendered.
func (p *PanelRenderer) Schedule(room domain.RoomID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.timers[room]; ok {
		t.Stop()
	}
	p.timers[room] = time.AfterFunc(p.debounce, func() {
		p.mu.Lock()
		delete(p.timers, room)
		p.mu.Unlock()
		p.Render(room)
	})
}

// Cancel drops any pending render, called when the room is destroyed.
func (p *PanelRenderer) Cancel(room domain.RoomID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.timers[room]; ok {
		t.Stop()
		delete(p.timers, room)
	}
}

// Render places or refreshes the panel immediately. The config is read at
// render time so a coalesced burst renders its final state; a room deleted
// mid-flight renders nothing.
func (p *PanelRenderer) Render(room domain.RoomID) {
	cfg, err := p.store.Room(room)
	if err != nil {
		log.Error().Err(err).Str("module", "panel").Str("room", string(room)).Msg("load config")
		return
	}
	if cfg == nil {
		return
	}
	view := viewOf(room, cfg)

	if cfg.PanelMessageID != "" {
		err := p.be.EditPanel(room, cfg.PanelMessageID, view)
		if err == nil {
			if err := p.be.PinMessage(room, cfg.PanelMessageID); err != nil {
				log.Debug().Err(err).Str("module", "panel").Str("room", string(room)).Msg("pin")
			}
			return
		}
		// message gone: fall through and send a fresh one
		log.Debug().Err(err).Str("module", "panel").Str("room", string(room)).Msg("edit failed, resending")
	}

	msgID, err := p.be.SendPanel(room, view)
	if err != nil {
		log.Warn().Err(err).Str("module", "panel").Str("room", string(room)).Msg("send panel")
		return
	}
	cfg.PanelMessageID = msgID
	if err := p.store.SetRoom(room, cfg); err != nil {
		log.Error().Err(err).Str("module", "panel").Str("room", string(room)).Msg("persist panel id")
	}
	if err := p.be.PinMessage(room, msgID); err != nil {
		log.Debug().Err(err).Str("module", "panel").Str("room", string(room)).Msg("pin")
	}
}

// Sweep deletes leftover panel messages other than keep. Used on the
// setup/refresh path so storage loss can never leave duplicate panels.
func (p *PanelRenderer) Sweep(room domain.RoomID, keep string) {
	ids, err := p.be.StalePanels(room, keep, p.scan)
	if err != nil {
		log.Debug().Err(err).Str("module", "panel").Str("room", string(room)).Msg("sweep scan")
		return
	}
	for _, id := range ids {
		if err := p.be.DeleteMessage(room, id); err != nil {
			log.Debug().Err(err).Str("module", "panel").Str("room", string(room)).Str("message", id).Msg("sweep delete")
		}
	}
}
