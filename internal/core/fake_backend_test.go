package core

import (
	"fmt"
	"sync"

	"github.com/selimk/Lobby/internal/domain"
)

// fakeBackend is an in-memory recording implementation of Backend shared
// by the engine tests.
type fakeBackend struct {
	mu     sync.Mutex
	nextID int

	channels map[domain.RoomID]*fakeChannel

	// operation counters for idempotence assertions
	clearOps   int
	connectOps int

	disconnected []domain.UserID
}

type fakeChannel struct {
	guildID   domain.GuildID
	name      string
	parentID  string
	userLimit int
	everyone  *bool // connect grant for the default population, nil = unset
	members   map[domain.UserID]struct{}
	grants    map[domain.UserID]Overwrite
	roleOws   map[domain.UserID]Overwrite
	messages  []*fakeMessage
}

type fakeMessage struct {
	id     string
	panel  bool
	pinned bool
	view   PanelView
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{channels: make(map[domain.RoomID]*fakeChannel)}
}

func (f *fakeBackend) addChannel(id domain.RoomID, gid domain.GuildID, name string) *fakeChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := &fakeChannel{
		guildID: gid,
		name:    name,
		members: make(map[domain.UserID]struct{}),
		grants:  make(map[domain.UserID]Overwrite),
		roleOws: make(map[domain.UserID]Overwrite),
	}
	f.channels[id] = ch
	return ch
}

func (f *fakeBackend) channel(id domain.RoomID) (*fakeChannel, error) {
	ch, ok := f.channels[id]
	if !ok {
		return nil, ErrStale
	}
	return ch, nil
}

func (f *fakeBackend) join(id domain.RoomID, uid domain.UserID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.channels[id]; ok {
		ch.members[uid] = struct{}{}
	}
}

func (f *fakeBackend) leave(id domain.RoomID, uid domain.UserID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.channels[id]; ok {
		delete(ch.members, uid)
	}
}

func (f *fakeBackend) panelMessages(id domain.RoomID) []*fakeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[id]
	if !ok {
		return nil
	}
	out := make([]*fakeMessage, 0, len(ch.messages))
	for _, m := range ch.messages {
		if m.panel {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeBackend) CreateVoiceChannel(gid domain.GuildID, name, parentID string) (domain.RoomID, error) {
	f.mu.Lock()
	f.nextID++
	id := domain.RoomID(fmt.Sprintf("room-%d", f.nextID))
	f.mu.Unlock()
	ch := f.addChannel(id, gid, name)
	ch.parentID = parentID
	return id, nil
}

func (f *fakeBackend) DeleteChannel(id domain.RoomID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[id]; !ok {
		return ErrStale
	}
	delete(f.channels, id)
	return nil
}

func (f *fakeBackend) ChannelInfo(id domain.RoomID) (*ChannelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, err := f.channel(id)
	if err != nil {
		return nil, err
	}
	return &ChannelInfo{
		ID:          id,
		GuildID:     ch.guildID,
		Name:        ch.name,
		ParentID:    ch.parentID,
		UserLimit:   ch.userLimit,
		MemberCount: len(ch.members),
	}, nil
}

func (f *fakeBackend) MoveMember(gid domain.GuildID, uid domain.UserID, room domain.RoomID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.channels {
		if ch.guildID == gid {
			delete(ch.members, uid)
		}
	}
	ch, err := f.channel(room)
	if err != nil {
		return err
	}
	ch.members[uid] = struct{}{}
	return nil
}

func (f *fakeBackend) DisconnectMember(gid domain.GuildID, uid domain.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.channels {
		if ch.guildID == gid {
			delete(ch.members, uid)
		}
	}
	f.disconnected = append(f.disconnected, uid)
	return nil
}

func (f *fakeBackend) VoiceMembers(gid domain.GuildID, room domain.RoomID) ([]domain.UserID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, err := f.channel(room)
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserID, 0, len(ch.members))
	for uid := range ch.members {
		out = append(out, uid)
	}
	return out, nil
}

func (f *fakeBackend) SetUserLimit(id domain.RoomID, limit int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, err := f.channel(id)
	if err != nil {
		return err
	}
	ch.userLimit = limit
	return nil
}

func (f *fakeBackend) SetChannelName(id domain.RoomID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, err := f.channel(id)
	if err != nil {
		return err
	}
	ch.name = name
	return nil
}

func (f *fakeBackend) SetConnect(id domain.RoomID, target domain.UserID, allow bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, err := f.channel(id)
	if err != nil {
		return err
	}
	f.connectOps++
	ch.grants[target] = Overwrite{TargetID: target, Allow: allow, Deny: !allow}
	return nil
}

func (f *fakeBackend) ClearOverwrite(id domain.RoomID, target domain.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, err := f.channel(id)
	if err != nil {
		return err
	}
	f.clearOps++
	delete(ch.grants, target)
	return nil
}

func (f *fakeBackend) SetEveryoneConnect(gid domain.GuildID, id domain.RoomID, allow bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, err := f.channel(id)
	if err != nil {
		return err
	}
	v := allow
	ch.everyone = &v
	return nil
}

func (f *fakeBackend) ClearAllOverwrites(id domain.RoomID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, err := f.channel(id)
	if err != nil {
		return err
	}
	ch.grants = make(map[domain.UserID]Overwrite)
	ch.roleOws = make(map[domain.UserID]Overwrite)
	ch.everyone = nil
	return nil
}

func (f *fakeBackend) Overwrites(id domain.RoomID) ([]Overwrite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, err := f.channel(id)
	if err != nil {
		return nil, err
	}
	out := make([]Overwrite, 0, len(ch.grants)+len(ch.roleOws)+1)
	if ch.everyone != nil {
		out = append(out, Overwrite{TargetID: domain.UserID(ch.guildID), Role: true, Everyone: true, Allow: *ch.everyone, Deny: !*ch.everyone})
	}
	for _, ow := range ch.grants {
		out = append(out, ow)
	}
	for _, ow := range ch.roleOws {
		out = append(out, ow)
	}
	return out, nil
}

func (f *fakeBackend) SendPanel(id domain.RoomID, v PanelView) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, err := f.channel(id)
	if err != nil {
		return "", err
	}
	f.nextID++
	msg := &fakeMessage{id: fmt.Sprintf("msg-%d", f.nextID), panel: true, view: v}
	ch.messages = append(ch.messages, msg)
	return msg.id, nil
}

func (f *fakeBackend) EditPanel(id domain.RoomID, messageID string, v PanelView) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, err := f.channel(id)
	if err != nil {
		return err
	}
	for _, m := range ch.messages {
		if m.id == messageID {
			m.view = v
			return nil
		}
	}
	return ErrStale
}

func (f *fakeBackend) DeleteMessage(id domain.RoomID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, err := f.channel(id)
	if err != nil {
		return err
	}
	for i, m := range ch.messages {
		if m.id == messageID {
			ch.messages = append(ch.messages[:i], ch.messages[i+1:]...)
			return nil
		}
	}
	return ErrStale
}

func (f *fakeBackend) PinMessage(id domain.RoomID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, err := f.channel(id)
	if err != nil {
		return err
	}
	for _, m := range ch.messages {
		if m.id == messageID {
			m.pinned = true
			return nil
		}
	}
	return ErrStale
}

func (f *fakeBackend) StalePanels(id domain.RoomID, keep string, scan int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, err := f.channel(id)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, m := range ch.messages {
		if m.panel && m.id != keep {
			out = append(out, m.id)
		}
		if len(out) >= scan {
			break
		}
	}
	return out, nil
}

// fakeResponder records replies and modal prompts.
type fakeResponder struct {
	mu      sync.Mutex
	replies []string
	modals  []Modal
}

func (r *fakeResponder) Reply(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, msg)
}

func (r *fakeResponder) ShowModal(m Modal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modals = append(r.modals, m)
}

func (r *fakeResponder) lastReply() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.replies) == 0 {
		return ""
	}
	return r.replies[len(r.replies)-1]
}
