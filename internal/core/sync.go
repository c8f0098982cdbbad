package core

import (
	"github.com/selimk/Lobby/internal/domain"
)

// Synchronizer rebuilds stored config from a room's live state. It is the
// reverse flow of the Reconciler, used to recover from drift such as an
// admin editing permissions by hand.
type Synchronizer struct {
	be Backend
}

func NewSynchronizer(be Backend) *Synchronizer {
	return &Synchronizer{be: be}
}

// Pull overwrites cfg's allow/deny/locked/userLimit from the live channel.
//
// Owner and mods are never inferred from live grants: a connect-allow
// overwrite cannot distinguish "owner" from "allowed user", so those two
// fields are trusted from storage only and their live overwrites are
// skipped here. Role-scoped and ambiguous overwrites are ignored.
func (s *Synchronizer) Pull(room domain.RoomID, cfg *domain.RoomConfig) error {
	info, err := s.be.ChannelInfo(room)
	if err != nil {
		return err
	}
	cfg.UserLimit = info.UserLimit

	ows, err := s.be.Overwrites(room)
	if err != nil {
		return err
	}

	mods := make(map[domain.UserID]struct{}, len(cfg.Mods))
	for _, id := range cfg.Mods {
		mods[id] = struct{}{}
	}

	locked := false
	allow := make([]domain.UserID, 0, len(ows))
	deny := make([]domain.UserID, 0, len(ows))
	for _, ow := range ows {
		if ow.Everyone {
			locked = ow.Deny
			continue
		}
		if ow.Role {
			continue
		}
		if ow.TargetID == cfg.OwnerID {
			continue
		}
		if _, isMod := mods[ow.TargetID]; isMod {
			continue
		}
		switch {
		case ow.Allow && !ow.Deny:
			allow = append(allow, ow.TargetID)
		case ow.Deny && !ow.Allow:
			deny = append(deny, ow.TargetID)
		}
	}

	cfg.Locked = locked
	cfg.SetAllow(allow)
	cfg.SetDeny(deny)
	// keep the diff base aligned with what the channel actually carries
	cfg.Managed = cfg.DesiredManaged()
	return nil
}
