package moderation_test

import (
	"context"
	"testing"

	"github.com/robalyx/bailiff/internal/moderation"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNotificationTexts(t *testing.T) {
	t.Parallel()

	info := moderation.NotifyInfo{GuildName: "Test Guild", WarnCount: 2}

	text, ok := moderation.NotificationText(moderation.KindKick, "rude", info)
	assert.True(t, ok)
	assert.Equal(t, "**You were kicked** from `Test Guild`.\n*The given reason is:* \"rude\".\n\nYou are able to rejoin.", text)

	text, ok = moderation.NotificationText(moderation.KindTimedBan, "", info)
	assert.True(t, ok)
	assert.Equal(t, "**You were banned** from `Test Guild`.\n\nThis ban does not expire.", text)

	text, ok = moderation.NotificationText(moderation.KindWarn, "spam", info)
	assert.True(t, ok)
	assert.Equal(t, "**You were warned** on `Test Guild`.\nThe given reason is: spam\n\nPlease read the rules. This is warn #2.", text)

	info.RulesURL = "https://rules.example"
	text, _ = moderation.NotificationText(moderation.KindWarn, "", info)
	assert.Equal(t, "**You were warned** on `Test Guild`.\n\nPlease read the rules in https://rules.example. This is warn #2.", text)

	for _, kind := range []moderation.ActionKind{
		moderation.KindSilentBan, moderation.KindUnban, moderation.KindMassBan, moderation.KindNote,
	} {
		_, ok = moderation.NotificationText(kind, "x", info)
		assert.False(t, ok, kind.String())
	}
}

func TestNotifierOutcomes(t *testing.T) {
	t.Parallel()

	messenger := newFakeMessenger()
	messenger.fail[strayID] = moderation.ErrDMForbidden
	notifier := moderation.NewNotifier(messenger, 1, zap.NewNop())

	member := moderation.Target{Identity: moderation.Identity{ID: memberID}, Member: &moderation.Member{}}
	blocked := moderation.Target{Identity: moderation.Identity{ID: strayID}, Member: &moderation.Member{}}
	absent := moderation.Target{Identity: moderation.Identity{ID: memberID}}

	assert.Equal(t, moderation.NotifySent, notifier.Notify(t.Context(), member, moderation.KindKick, "", moderation.NotifyInfo{}))
	assert.Equal(t, moderation.NotifyForbidden, notifier.Notify(t.Context(), blocked, moderation.KindKick, "", moderation.NotifyInfo{}))
	assert.Equal(t, moderation.NotifyNotMember, notifier.Notify(t.Context(), absent, moderation.KindKick, "", moderation.NotifyInfo{}))
	assert.Equal(t, moderation.NotifyNotApplicable, notifier.Notify(t.Context(), member, moderation.KindUnban, "", moderation.NotifyInfo{}))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.Equal(t, moderation.NotifyDeliveryError, notifier.Notify(ctx, member, moderation.KindKick, "", moderation.NotifyInfo{}))

	assert.Len(t, messenger.Sent(), 1)
}
