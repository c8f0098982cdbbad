package store

import (
	"encoding/binary"
	"errors"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/selimk/Lobby/internal/domain"
)

func ticketCfgKeyOf(gid domain.GuildID) []byte { return []byte(ticketCfgKey + string(gid)) }

func ticketDataKeyOf(channelID string) []byte { return []byte(ticketDataKey + channelID) }

func ticketSeqKeyOf(gid domain.GuildID) []byte { return []byte(ticketSeqKey + string(gid)) }

func (s *Store) TicketConfig(gid domain.GuildID) (*domain.TicketConfig, error) {
	var cfg domain.TicketConfig
	ok, err := s.get(ticketCfgKeyOf(gid), &cfg)
	if err != nil || !ok {
		return nil, err
	}
	return &cfg, nil
}

func (s *Store) SetTicketConfig(gid domain.GuildID, cfg *domain.TicketConfig) error {
	return s.set(ticketCfgKeyOf(gid), cfg)
}

func (s *Store) DeleteTicketConfig(gid domain.GuildID) error {
	return s.delete(ticketCfgKeyOf(gid))
}

func (s *Store) Ticket(channelID string) (*domain.TicketRecord, error) {
	var rec domain.TicketRecord
	ok, err := s.get(ticketDataKeyOf(channelID), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) SetTicket(channelID string, rec *domain.TicketRecord) error {
	return s.set(ticketDataKeyOf(channelID), rec)
}

func (s *Store) DeleteTicket(channelID string) error {
	return s.delete(ticketDataKeyOf(channelID))
}

// NextTicketSeq increments and returns the guild's ticket counter.
func (s *Store) NextTicketSeq(gid domain.GuildID) (uint64, error) {
	var seq uint64
	key := ticketSeqKeyOf(gid)
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			seq = 1
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				if len(val) == 8 {
					seq = binary.BigEndian.Uint64(val)
				}
				return nil
			}); err != nil {
				return err
			}
			seq++
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, seq)
		return txn.Set(key, buf)
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}
