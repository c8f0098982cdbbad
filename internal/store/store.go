// Package store persists bot state in a local badger key-value database.
// Keys are flat string templates over room/guild/user identifiers; values
// are JSON records. There are no cross-key transactions: every mutation is
// last-write-wins on a single key.
package store

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/selimk/Lobby/internal/domain"
)

const (
	roomPrefix     = "room:"
	guildPrefix    = "guild:"
	tempTplPrefix  = "temp-template:"
	userTplPrefix  = "user-template:"
	ticketCfgKey   = "ticket-config:"
	ticketDataKey  = "ticket:"
	ticketSeqKey   = "ticket-seq:"
)

func roomKey(id domain.RoomID) []byte { return []byte(roomPrefix + string(id)) }

func guildKey(id domain.GuildID) []byte { return []byte(guildPrefix + string(id)) }

func tempTplKey(id domain.GuildID) []byte { return []byte(tempTplPrefix + string(id)) }

func userTplKey(gid domain.GuildID, uid domain.UserID) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", userTplPrefix, gid, uid))
}

type Store struct {
	db *badger.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a throwaway in-memory database, used by tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// get unmarshals the record at key into out. Returns false when absent.
func (s *Store) get(key []byte, out any) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) set(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) delete(key []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Room returns the stored config for a room, or nil when unmanaged.
func (s *Store) Room(id domain.RoomID) (*domain.RoomConfig, error) {
	var cfg domain.RoomConfig
	ok, err := s.get(roomKey(id), &cfg)
	if err != nil || !ok {
		return nil, err
	}
	return &cfg, nil
}

func (s *Store) SetRoom(id domain.RoomID, cfg *domain.RoomConfig) error {
	return s.set(roomKey(id), cfg)
}

func (s *Store) DeleteRoom(id domain.RoomID) error {
	return s.delete(roomKey(id))
}

// ManagedRooms scans every stored room config, keyed by room id.
func (s *Store) ManagedRooms() (map[domain.RoomID]*domain.RoomConfig, error) {
	out := make(map[domain.RoomID]*domain.RoomConfig)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(roomPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			id := domain.RoomID(item.Key()[len(prefix):])
			var cfg domain.RoomConfig
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &cfg)
			}); err != nil {
				log.Warn().Err(err).Str("module", "store").Str("room", string(id)).Msg("skipping unreadable room record")
				continue
			}
			out[id] = &cfg
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan rooms: %w", err)
	}
	return out, nil
}

func (s *Store) Guild(id domain.GuildID) (*domain.GuildConfig, error) {
	var cfg domain.GuildConfig
	ok, err := s.get(guildKey(id), &cfg)
	if err != nil || !ok {
		return nil, err
	}
	return &cfg, nil
}

func (s *Store) SetGuild(id domain.GuildID, cfg *domain.GuildConfig) error {
	return s.set(guildKey(id), cfg)
}

func (s *Store) DeleteGuild(id domain.GuildID) error {
	return s.delete(guildKey(id))
}

func (s *Store) Template(id domain.GuildID) (*domain.RoomTemplate, error) {
	var tpl domain.RoomTemplate
	ok, err := s.get(tempTplKey(id), &tpl)
	if err != nil || !ok {
		return nil, err
	}
	return &tpl, nil
}

func (s *Store) SetTemplate(id domain.GuildID, tpl *domain.RoomTemplate) error {
	return s.set(tempTplKey(id), tpl)
}

// NameFor returns the user's remembered room name, or nil.
func (s *Store) NameFor(gid domain.GuildID, uid domain.UserID) (*domain.NameTemplate, error) {
	var tpl domain.NameTemplate
	ok, err := s.get(userTplKey(gid, uid), &tpl)
	if err != nil || !ok {
		return nil, err
	}
	return &tpl, nil
}

func (s *Store) SetNameFor(gid domain.GuildID, uid domain.UserID, tpl *domain.NameTemplate) error {
	return s.set(userTplKey(gid, uid), tpl)
}
