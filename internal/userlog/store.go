// Package userlog implements the append-only moderation ledger.
//
// Each guild stores every user's ledger inside one "userlog" document. All
// mutations are read-modify-write cycles against that document, serialized
// per guild by a process-local lock.
package userlog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/bailiff/internal/document"
	"go.uber.org/zap"
)

var (
	// ErrNoSuchEvents indicates the user has no events of the requested kind.
	ErrNoSuchEvents = errors.New("no such events")
	// ErrIndexOutOfRange indicates a 1-based index outside 1..count.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrUnknownKind indicates an unrecognized event kind name.
	ErrUnknownKind = errors.New("unknown event kind")
)

// IndexError carries the bounds of a rejected index.
type IndexError struct {
	Index int
	Count int
}

func (e *IndexError) Error() string {
	if e.Index < 1 {
		return "index is below 1"
	}
	return fmt.Sprintf("index is higher than count (%d)", e.Count)
}

func (e *IndexError) Unwrap() error { return ErrIndexOutOfRange }

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for new events.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store is the ledger of moderation events.
type Store struct {
	docs   document.Store
	locker *document.Locker
	logger *zap.Logger
	now    func() time.Time
}

// NewStore creates a ledger backed by the given document store.
func NewStore(docs document.Store, locker *document.Locker, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		docs:   docs,
		locker: locker,
		logger: logger.Named("userlog"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AppendEvent records a new event and returns the resulting count of that kind.
func (s *Store) AppendEvent(
	ctx context.Context, guildID, userID snowflake.ID, kind EventKind, issuer Issuer, reason string,
) (int, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}

	event := Event{
		Timestamp: s.now().UTC().Truncate(time.Second),
		Issuer:    issuer,
		Reason:    reason,
	}

	var count int
	err := s.update(ctx, guildID, func(doc ledger) error {
		key := userKey(userID)
		rec, ok := doc[key]
		if !ok {
			rec = newUserRecord()
			doc[key] = rec
		}

		list := rec.list(kind)
		*list = append(*list, toRecord(event))
		count = len(*list)
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug("Appended event",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Uint64("userID", uint64(userID)),
		zap.String("kind", kind.String()),
		zap.Int("count", count))

	return count, nil
}

// ListEvents returns the events of the given kinds, or of every kind when none
// are given. A user without a log yields an empty map.
func (s *Store) ListEvents(
	ctx context.Context, guildID, userID snowflake.ID, kinds ...EventKind,
) (map[EventKind][]Event, error) {
	doc, err := s.load(ctx, guildID)
	if err != nil {
		return nil, err
	}

	if len(kinds) == 0 {
		kinds = AllKinds
	}

	result := make(map[EventKind][]Event)

	rec, ok := doc[userKey(userID)]
	if !ok {
		return result, nil
	}

	for _, kind := range kinds {
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
		}
		if list := *rec.list(kind); len(list) > 0 {
			result[kind] = fromRecords(list)
		}
	}

	return result, nil
}

// GetLog returns the complete log of a user, including the watch state.
// The boolean is false when the user has never been logged.
func (s *Store) GetLog(ctx context.Context, guildID, userID snowflake.ID) (*GuildUserLog, bool, error) {
	doc, err := s.load(ctx, guildID)
	if err != nil {
		return nil, false, err
	}

	log := &GuildUserLog{Events: make(map[EventKind][]Event)}

	rec, ok := doc[userKey(userID)]
	if !ok {
		return log, false, nil
	}

	for _, kind := range AllKinds {
		if list := *rec.list(kind); len(list) > 0 {
			log.Events[kind] = fromRecords(list)
		}
	}
	log.Watch.State = rec.Watch.State

	return log, true, nil
}

// ClearKind removes every event of one kind and returns how many were removed.
func (s *Store) ClearKind(ctx context.Context, guildID, userID snowflake.ID, kind EventKind) (int, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}

	var removed int
	err := s.update(ctx, guildID, func(doc ledger) error {
		rec, ok := doc[userKey(userID)]
		if !ok {
			return ErrNoSuchEvents
		}

		list := rec.list(kind)
		if len(*list) == 0 {
			return ErrNoSuchEvents
		}

		removed = len(*list)
		*list = []eventRecord{}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug("Cleared events",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Uint64("userID", uint64(userID)),
		zap.String("kind", kind.String()),
		zap.Int("removed", removed))

	return removed, nil
}

// DeleteAtIndex removes the event at the 1-based index and returns it. The
// existence check runs before the bounds check.
func (s *Store) DeleteAtIndex(
	ctx context.Context, guildID, userID snowflake.ID, kind EventKind, idx int,
) (Event, error) {
	if !kind.Valid() {
		return Event{}, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}

	var removed eventRecord
	err := s.update(ctx, guildID, func(doc ledger) error {
		rec, ok := doc[userKey(userID)]
		if !ok {
			return ErrNoSuchEvents
		}

		list := rec.list(kind)
		count := len(*list)
		if count == 0 {
			return ErrNoSuchEvents
		}
		if idx < 1 || idx > count {
			return &IndexError{Index: idx, Count: count}
		}

		removed = (*list)[idx-1]
		remaining := make([]eventRecord, 0, count-1)
		remaining = append(remaining, (*list)[:idx-1]...)
		remaining = append(remaining, (*list)[idx:]...)
		*list = remaining
		return nil
	})
	if err != nil {
		return Event{}, err
	}

	s.logger.Debug("Deleted event",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Uint64("userID", uint64(userID)),
		zap.String("kind", kind.String()),
		zap.Int("index", idx))

	return fromRecord(removed), nil
}

// Users returns the ids of every user holding a log in the guild, in ascending order.
func (s *Store) Users(ctx context.Context, guildID snowflake.ID) ([]snowflake.ID, error) {
	doc, err := s.load(ctx, guildID)
	if err != nil {
		return nil, err
	}

	users := make([]snowflake.ID, 0, len(doc))
	for key := range doc {
		id, err := snowflake.Parse(key)
		if err != nil {
			s.logger.Warn("Skipping malformed user key",
				zap.Uint64("guildID", uint64(guildID)),
				zap.String("key", key))
			continue
		}
		users = append(users, id)
	}
	slices.Sort(users)

	return users, nil
}

func (s *Store) load(ctx context.Context, guildID snowflake.ID) (ledger, error) {
	data, err := s.docs.Get(ctx, guildID, document.NameUserLog)
	if err != nil {
		return nil, fmt.Errorf("failed to read userlog: %w", err)
	}
	return decodeLedger(data)
}

// update runs fn against the decoded document under the guild lock and
// persists the result. Nothing is written when fn returns an error.
func (s *Store) update(ctx context.Context, guildID snowflake.ID, fn func(ledger) error) error {
	unlock := s.locker.Lock(guildID, document.NameUserLog)
	defer unlock()

	doc, err := s.load(ctx, guildID)
	if err != nil {
		return err
	}

	if err := fn(doc); err != nil {
		return err
	}

	data, err := encodeLedger(doc)
	if err != nil {
		return err
	}

	if err := s.docs.Set(ctx, guildID, document.NameUserLog, data); err != nil {
		return fmt.Errorf("failed to write userlog: %w", err)
	}

	return nil
}
