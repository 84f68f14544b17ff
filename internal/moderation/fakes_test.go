package moderation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/bailiff/internal/document"
	"github.com/robalyx/bailiff/internal/guildconfig"
	"github.com/robalyx/bailiff/internal/moderation"
	"github.com/robalyx/bailiff/internal/userlog"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	guildID  = snowflake.ID(100)
	botID    = snowflake.ID(1)
	actorID  = snowflake.ID(2)
	staffID  = snowflake.ID(3)
	memberID = snowflake.ID(4)
	strayID  = snowflake.ID(5)
	staffRID = snowflake.ID(900)
)

var errPlatform = errors.New("platform unavailable")

// callSequence records the order in which collaborators were called.
type callSequence struct {
	ops []string
	mu  sync.Mutex
}

func (c *callSequence) add(op string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = append(c.ops, op)
}

func (c *callSequence) Ops() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ops...)
}

type membershipCall struct {
	Op          string
	UserID      snowflake.ID
	DeleteDays  int
	AuditReason string
}

// fakeMembership simulates a guild. Users in members are in the guild; every
// user in users can be resolved.
type fakeMembership struct {
	users   map[snowflake.ID]moderation.Identity
	members map[snowflake.ID]*moderation.Member
	fail    map[snowflake.ID]error
	panics  map[snowflake.ID]bool
	delays  map[snowflake.ID]time.Duration
	calls   []membershipCall
	seq     *callSequence
	mu      sync.Mutex
}

func newFakeMembership() *fakeMembership {
	m := &fakeMembership{
		users:   make(map[snowflake.ID]moderation.Identity),
		members: make(map[snowflake.ID]*moderation.Member),
		fail:    make(map[snowflake.ID]error),
		panics:  make(map[snowflake.ID]bool),
		delays:  make(map[snowflake.ID]time.Duration),
	}
	m.addUser(botID, "bailiff", true)
	m.addUser(actorID, "moderator", true)
	m.addUser(staffID, "helper", true, staffRID)
	m.addUser(memberID, "member", true)
	m.addUser(strayID, "stray", false)
	return m
}

func (m *fakeMembership) addUser(id snowflake.ID, name string, member bool, roles ...snowflake.ID) {
	m.users[id] = moderation.Identity{ID: id, Name: name, AvatarURL: fmt.Sprintf("https://cdn.example/%d.png", id)}
	if member {
		m.members[id] = &moderation.Member{RoleIDs: roles}
	}
}

// record simulates one membership call. A configured delay behaves like a
// slow REST round-trip that gives up when ctx ends.
func (m *fakeMembership) record(ctx context.Context, call membershipCall) error {
	m.mu.Lock()
	delay := m.delays[call.UserID]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.panics[call.UserID] {
		panic("membership exploded")
	}
	m.calls = append(m.calls, call)
	m.seq.add(call.Op)
	return m.fail[call.UserID]
}

func (m *fakeMembership) Kick(ctx context.Context, _, userID snowflake.ID, auditReason string) error {
	return m.record(ctx, membershipCall{Op: "kick", UserID: userID, AuditReason: auditReason})
}

func (m *fakeMembership) Ban(ctx context.Context, _, userID snowflake.ID, deleteDays int, auditReason string) error {
	return m.record(ctx, membershipCall{Op: "ban", UserID: userID, DeleteDays: deleteDays, AuditReason: auditReason})
}

func (m *fakeMembership) Unban(ctx context.Context, _, userID snowflake.ID, auditReason string) error {
	return m.record(ctx, membershipCall{Op: "unban", UserID: userID, AuditReason: auditReason})
}

func (m *fakeMembership) ResolveMember(_ context.Context, _, userID snowflake.ID) (*moderation.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	member, ok := m.members[userID]
	if !ok {
		return nil, moderation.ErrMemberAbsent
	}
	return member, nil
}

func (m *fakeMembership) ResolveUser(_ context.Context, userID snowflake.ID) (moderation.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	identity, ok := m.users[userID]
	if !ok {
		return moderation.Identity{}, errors.New("unknown user")
	}
	return identity, nil
}

func (m *fakeMembership) Calls() []membershipCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]membershipCall(nil), m.calls...)
}

type sentMessage struct {
	UserID snowflake.ID
	Text   string
}

type fakeMessenger struct {
	fail map[snowflake.ID]error
	sent []sentMessage
	seq  *callSequence
	mu   sync.Mutex
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{fail: make(map[snowflake.ID]error)}
}

func (f *fakeMessenger) SendDirectMessage(_ context.Context, userID snowflake.ID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq.add("dm")
	if err := f.fail[userID]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMessage{UserID: userID, Text: text})
	return nil
}

func (f *fakeMessenger) Sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type published struct {
	ChannelID snowflake.ID
	Msg       moderation.AuditMessage
}

type fakePublisher struct {
	err       error
	published []published
	mu        sync.Mutex
}

func (f *fakePublisher) PublishAudit(_ context.Context, channelID snowflake.ID, msg moderation.AuditMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, published{ChannelID: channelID, Msg: msg})
	return nil
}

func (f *fakePublisher) Published() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.published...)
}

type harness struct {
	pipeline   *moderation.Pipeline
	deps       moderation.Dependencies
	seq        *callSequence
	ledger     *userlog.Store
	config     *guildconfig.Provider
	membership *fakeMembership
	messenger  *fakeMessenger
	publisher  *fakePublisher
}

func setupTest(t *testing.T) *harness {
	t.Helper()

	logger := zap.NewNop()
	docs := document.NewMemory()
	locker := document.NewLocker()
	ledger := userlog.NewStore(docs, locker, logger, userlog.WithClock(func() time.Time {
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	}))
	config := guildconfig.NewProvider(docs, locker)
	require.NoError(t, config.Set(t.Context(), guildID, guildconfig.SectionStaff, guildconfig.KeyStaffRole, staffRID.String()))

	h := &harness{
		seq:        &callSequence{},
		ledger:     ledger,
		config:     config,
		membership: newFakeMembership(),
		messenger:  newFakeMessenger(),
		publisher:  &fakePublisher{},
	}
	h.membership.seq = h.seq
	h.messenger.seq = h.seq

	h.deps = moderation.Dependencies{
		Guard:      moderation.NewGuard(botID),
		Ledger:     ledger,
		Membership: h.membership,
		Config:     config,
		Notifier:   moderation.NewNotifier(h.messenger, 4, logger),
		Executor:   moderation.NewExecutor(h.membership, logger),
		Audit:      moderation.NewAuditEmitter(config, h.publisher, logger),
	}
	h.pipeline = moderation.NewPipeline(h.deps, 3, logger)
	t.Cleanup(h.pipeline.Close)

	return h
}

func (h *harness) enableModLog(t *testing.T, channelID snowflake.ID) {
	t.Helper()
	require.NoError(t, h.config.Set(t.Context(), guildID, guildconfig.SectionLogging, guildconfig.KeyModLog, channelID.String()))
}

func (h *harness) events(t *testing.T, userID snowflake.ID, kind userlog.EventKind) []userlog.Event {
	t.Helper()
	events, err := h.ledger.ListEvents(t.Context(), guildID, userID, kind)
	require.NoError(t, err)
	return events[kind]
}

func request(targetID snowflake.ID, action moderation.Action, reason string) moderation.ActionRequest {
	return moderation.NewActionRequest(
		moderation.Guild{ID: guildID, Name: "Test Guild"},
		moderation.Identity{ID: actorID, Name: "moderator"},
		targetID,
		action,
		reason,
		moderation.Origin{ChannelID: 700, JumpURL: "https://discord.com/channels/100/700/800"},
	)
}
