package core

import (
	"github.com/rs/zerolog/log"

	"github.com/selimk/Lobby/internal/domain"
)

// Reconciler makes a live room's connect grants match its stored config.
type Reconciler struct {
	be Backend
}

func NewReconciler(be Backend) *Reconciler {
	return &Reconciler{be: be}
}

// Apply pushes cfg onto the live channel and refreshes cfg.Managed.
//
// Ordering: stale cleanup first, then the everyone grant, then deny, then
// allow, then owner and mods last so they always win over anything earlier.
// Every individual grant is best-effort; a failed call never aborts its
// siblings, the next mutation or an explicit refresh heals the remainder.
func (r *Reconciler) Apply(gid domain.GuildID, room domain.RoomID, cfg *domain.RoomConfig) {
	desired := cfg.DesiredManaged()
	desiredSet := make(map[domain.UserID]struct{}, len(desired))
	for _, id := range desired {
		desiredSet[id] = struct{}{}
	}

	// Identities we touched last time but no longer track fall back to
	// the default population rule. Without this, users removed from
	// allow/deny/mods keep their old overwrite forever.
	for _, id := range cfg.Managed {
		if _, ok := desiredSet[id]; ok {
			continue
		}
		if err := r.be.ClearOverwrite(room, id); err != nil {
			r.warn(room, id, "clear stale overwrite", err)
		}
	}

	if err := r.be.SetEveryoneConnect(gid, room, !cfg.Locked); err != nil {
		r.warn(room, "everyone", "set default connect", err)
	}

	for _, id := range cfg.Deny {
		if err := r.be.SetConnect(room, id, false); err != nil {
			r.warn(room, id, "deny connect", err)
		}
	}
	for _, id := range cfg.Allow {
		if err := r.be.SetConnect(room, id, true); err != nil {
			r.warn(room, id, "allow connect", err)
		}
	}

	// owner and mods are applied last so a stale deny can never block them
	if cfg.OwnerID != "" {
		if err := r.be.SetConnect(room, cfg.OwnerID, true); err != nil {
			r.warn(room, cfg.OwnerID, "owner connect", err)
		}
	}
	for _, id := range cfg.Mods {
		if err := r.be.SetConnect(room, id, true); err != nil {
			r.warn(room, id, "mod connect", err)
		}
	}

	cfg.Managed = desired
}

func (r *Reconciler) warn(room domain.RoomID, target any, op string, err error) {
	log.Warn().Err(err).
		Str("module", "reconciler").
		Str("room", string(room)).
		Any("target", target).
		Msgf("%s failed", op)
}
