package moderation

import (
	"cmp"
	"slices"
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// GuildState tracks the actions currently running in one guild.
type GuildState struct {
	inFlight map[snowflake.ID]*pendingEntry
	refs     int
}

type pendingEntry struct {
	kind  ActionKind
	count int
}

// GuildStates owns the per-guild state of the pipeline. A guild's entry is
// created when its first action starts and removed when its last one ends.
type GuildStates struct {
	guilds map[snowflake.ID]*GuildState
	closed bool
	mu     sync.Mutex
}

// NewGuildStates creates an empty registry.
func NewGuildStates() *GuildStates {
	return &GuildStates{guilds: make(map[snowflake.ID]*GuildState)}
}

// Begin marks the target as in flight and returns the func that releases it.
// It returns false once the registry is closed.
func (g *GuildStates) Begin(guildID, targetID snowflake.ID, kind ActionKind) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return func() {}, false
	}

	state, exists := g.guilds[guildID]
	if !exists {
		state = &GuildState{inFlight: make(map[snowflake.ID]*pendingEntry)}
		g.guilds[guildID] = state
	}
	state.refs++

	entry, exists := state.inFlight[targetID]
	if !exists {
		entry = &pendingEntry{}
		state.inFlight[targetID] = entry
	}
	entry.kind = kind
	entry.count++

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()

			state.refs--
			entry.count--
			if entry.count == 0 {
				delete(state.inFlight, targetID)
			}
			if state.refs == 0 && g.guilds[guildID] == state {
				delete(g.guilds, guildID)
			}
		})
	}, true
}

// PendingTarget is one in-flight action.
type PendingTarget struct {
	TargetID snowflake.ID
	Kind     ActionKind
}

// Pending returns the in-flight targets of a guild ordered by id.
func (g *GuildStates) Pending(guildID snowflake.ID) []PendingTarget {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, ok := g.guilds[guildID]
	if !ok {
		return nil
	}

	pending := make([]PendingTarget, 0, len(state.inFlight))
	for id, entry := range state.inFlight {
		pending = append(pending, PendingTarget{TargetID: id, Kind: entry.kind})
	}
	slices.SortFunc(pending, func(a, b PendingTarget) int {
		return cmp.Compare(a.TargetID, b.TargetID)
	})

	return pending
}

// Active returns the number of guilds with in-flight work.
func (g *GuildStates) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.guilds)
}

// Close rejects new work and drops every entry.
func (g *GuildStates) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.closed = true
	clear(g.guilds)
}
