package moderation_test

import (
	"strings"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/bailiff/internal/guildconfig"
	"github.com/robalyx/bailiff/internal/moderation"
	"github.com/robalyx/bailiff/internal/userlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarnFirstOffense(t *testing.T) {
	t.Parallel()

	h := setupTest(t)

	result, err := h.pipeline.Run(t.Context(), request(memberID, moderation.Warn{}, "spam"))
	require.NoError(t, err)

	assert.Equal(t, moderation.StateDone, result.State)
	assert.Equal(t, 1, result.Count)
	assert.Contains(t, result.Message, "warning #1")
	assert.Equal(t, moderation.AuditSkipped, result.Audit)
	assert.Empty(t, h.publisher.Published())

	warns := h.events(t, memberID, userlog.KindWarn)
	require.Len(t, warns, 1)
	assert.Equal(t, "spam", warns[0].Reason)
	assert.Equal(t, userlog.Issuer{ID: actorID, Name: "moderator"}, warns[0].Issuer)

	// Warnings make no membership call
	assert.Empty(t, h.membership.Calls())

	sent := h.messenger.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "**You were warned** on `Test Guild`.")
	assert.Contains(t, sent[0].Text, "This is warn #1.")
	assert.Equal(t, moderation.NotifySent, result.Notify)
}

func TestWarnCountIncrements(t *testing.T) {
	t.Parallel()

	h := setupTest(t)

	for i := 1; i <= 3; i++ {
		result, err := h.pipeline.Run(t.Context(), request(memberID, moderation.Warn{}, "again"))
		require.NoError(t, err)
		assert.Equal(t, i, result.Count)
	}

	h.enableModLog(t, 555)

	result, err := h.pipeline.Run(t.Context(), request(memberID, moderation.Warn{}, "again"))
	require.NoError(t, err)
	assert.Equal(t, moderation.AuditPublished, result.Audit)

	published := h.publisher.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "🗞️ Warn #4", published[0].Msg.Embed.Title)
}

func TestBanWithEmptyReason(t *testing.T) {
	t.Parallel()

	h := setupTest(t)
	h.enableModLog(t, 555)

	result, err := h.pipeline.Run(t.Context(), request(memberID, moderation.Ban{}, ""))
	require.NoError(t, err)
	require.Equal(t, moderation.StateDone, result.State)

	// Stored reason stays empty
	bans := h.events(t, memberID, userlog.KindBan)
	require.Len(t, bans, 1)
	assert.Empty(t, bans[0].Reason)

	// Reply and audit substitute a default
	assert.Contains(t, result.Message, moderation.NoReasonText)

	published := h.publisher.Published()
	require.Len(t, published, 1)
	embed := published[0].Msg.Embed
	require.NotNil(t, embed)
	assert.Equal(t, "⛔ Ban", embed.Title)
	assert.Equal(t, moderation.SeverityDestructive.Color(), embed.Color)

	reasonField := embed.Fields[len(embed.Fields)-1]
	assert.Equal(t, "📝 Reason", reasonField.Name)
	assert.Contains(t, reasonField.Value, "**No reason provided!**")
	assert.Contains(t, reasonField.Value, "Ban reasons are sent to the user.")

	calls := h.membership.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, membershipCall{Op: "ban", UserID: memberID, AuditReason: "[ Ban by moderator ]"}, calls[0])

	// The DM leaves the reason line out
	sent := h.messenger.Sent()
	require.Len(t, sent, 1)
	assert.NotContains(t, sent[0].Text, "The given reason is")
}

func TestTimedBanRejectsInvalidDays(t *testing.T) {
	t.Parallel()

	for _, days := range []int{-1, 8, 30} {
		h := setupTest(t)

		_, err := h.pipeline.Run(t.Context(), request(memberID, moderation.TimedBan{DeleteDays: days}, "raid"))
		require.ErrorIs(t, err, moderation.ErrInvalidDeleteDays)

		assert.Empty(t, h.events(t, memberID, userlog.KindBan))
		assert.Empty(t, h.membership.Calls())
		assert.Empty(t, h.messenger.Sent())
	}
}

func TestTimedBanPassesDays(t *testing.T) {
	t.Parallel()

	h := setupTest(t)

	result, err := h.pipeline.Run(t.Context(), request(memberID, moderation.TimedBan{DeleteDays: 7}, "raid"))
	require.NoError(t, err)
	assert.Equal(t, moderation.StateDone, result.State)
	assert.Contains(t, result.Message, "7 day(s) of messages deleted")

	calls := h.membership.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 7, calls[0].DeleteDays)
}

func TestNotificationFailureDoesNotBlock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want moderation.NotifyOutcome
	}{
		{name: "forbidden", err: moderation.ErrDMForbidden, want: moderation.NotifyForbidden},
		{name: "delivery", err: errPlatform, want: moderation.NotifyDeliveryError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := setupTest(t)
			h.messenger.fail[memberID] = tt.err

			result, err := h.pipeline.Run(t.Context(), request(memberID, moderation.Kick{}, "rude"))
			require.NoError(t, err)

			assert.Equal(t, moderation.StateDone, result.State)
			assert.Equal(t, tt.want, result.Notify)
			assert.Len(t, h.events(t, memberID, userlog.KindKick), 1)

			calls := h.membership.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, "kick", calls[0].Op)
			assert.Equal(t, "[ Kick by moderator ] rude", calls[0].AuditReason)
		})
	}
}

func TestNotificationPrecedesAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		action moderation.Action
		want   []string
	}{
		{name: "kick", action: moderation.Kick{}, want: []string{"dm", "kick"}},
		{name: "ban", action: moderation.Ban{}, want: []string{"dm", "ban"}},
		{name: "timed ban", action: moderation.TimedBan{DeleteDays: 1}, want: []string{"dm", "ban"}},
		{name: "silent ban", action: moderation.SilentBan{}, want: []string{"ban"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := setupTest(t)

			result, err := h.pipeline.Run(t.Context(), request(memberID, tt.action, "spam"))
			require.NoError(t, err)
			require.Equal(t, moderation.StateDone, result.State)
			assert.Equal(t, tt.want, h.seq.Ops())
		})
	}

	// A refused DM is still attempted before the kick
	h := setupTest(t)
	h.messenger.fail[memberID] = moderation.ErrDMForbidden

	_, err := h.pipeline.Run(t.Context(), request(memberID, moderation.Kick{}, "rude"))
	require.NoError(t, err)
	assert.Equal(t, []string{"dm", "kick"}, h.seq.Ops())
}

func TestAuditFailureIsNotSkipped(t *testing.T) {
	t.Parallel()

	h := setupTest(t)
	h.enableModLog(t, 555)
	h.publisher.err = errPlatform

	result, err := h.pipeline.Run(t.Context(), request(memberID, moderation.Kick{}, "rude"))
	require.NoError(t, err)

	// The action stands even though the review channel rejected the record
	assert.Equal(t, moderation.StateDone, result.State)
	assert.Equal(t, moderation.AuditFailed, result.Audit)
	assert.Len(t, h.membership.Calls(), 1)
}

func TestDeniedActionWritesNothing(t *testing.T) {
	t.Parallel()

	h := setupTest(t)
	h.enableModLog(t, 555)

	result, err := h.pipeline.Run(t.Context(), request(staffID, moderation.Ban{}, "coup"))
	require.NoError(t, err)

	assert.Equal(t, moderation.StateDenied, result.State)
	assert.Equal(t, moderation.DenyImmune, result.Message)
	assert.Empty(t, h.events(t, staffID, userlog.KindBan))
	assert.Empty(t, h.membership.Calls())
	assert.Empty(t, h.messenger.Sent())
	assert.Empty(t, h.publisher.Published())
}

func TestNoteOnStaffIsAllowed(t *testing.T) {
	t.Parallel()

	h := setupTest(t)

	result, err := h.pipeline.Run(t.Context(), request(staffID, moderation.Note{}, "good helper"))
	require.NoError(t, err)

	assert.Equal(t, moderation.StateDone, result.State)
	assert.Equal(t, "Noted.", result.Message)
	assert.Equal(t, moderation.NotifyNotApplicable, result.Notify)
	assert.Len(t, h.events(t, staffID, userlog.KindNote), 1)
}

func TestActionFailureKeepsLedgerEntry(t *testing.T) {
	t.Parallel()

	h := setupTest(t)
	h.enableModLog(t, 555)
	h.membership.fail[memberID] = errPlatform

	result, err := h.pipeline.Run(t.Context(), request(memberID, moderation.Ban{}, "spam"))
	require.NoError(t, err)

	assert.Equal(t, moderation.StateActionFailed, result.State)

	var execErr *moderation.ActionExecutionError
	require.ErrorAs(t, result.Err, &execErr)
	require.ErrorIs(t, result.Err, errPlatform)
	assert.Equal(t, moderation.KindBan, execErr.Kind)
	assert.Contains(t, result.Message, "The log entry was kept.")

	assert.Len(t, h.events(t, memberID, userlog.KindBan), 1)
	assert.Len(t, h.messenger.Sent(), 1)
	assert.Empty(t, h.publisher.Published())
}

func TestUnresolvedTarget(t *testing.T) {
	t.Parallel()

	h := setupTest(t)

	_, err := h.pipeline.Run(t.Context(), request(12345, moderation.Ban{}, "who"))
	require.ErrorIs(t, err, moderation.ErrTargetUnresolved)

	// Kicks need current membership
	_, err = h.pipeline.Run(t.Context(), request(strayID, moderation.Kick{}, "gone"))
	require.ErrorIs(t, err, moderation.ErrTargetUnresolved)

	assert.Empty(t, h.events(t, strayID, userlog.KindKick))
	assert.Empty(t, h.membership.Calls())
}

func TestBanNonMemberSkipsNotification(t *testing.T) {
	t.Parallel()

	h := setupTest(t)

	result, err := h.pipeline.Run(t.Context(), request(strayID, moderation.Ban{}, "alt account"))
	require.NoError(t, err)

	assert.Equal(t, moderation.StateDone, result.State)
	assert.Equal(t, moderation.NotifyNotMember, result.Notify)
	assert.Empty(t, h.messenger.Sent())
	assert.Len(t, h.events(t, strayID, userlog.KindBan), 1)
}

func TestSilentBanAndUnban(t *testing.T) {
	t.Parallel()

	h := setupTest(t)
	h.enableModLog(t, 555)

	result, err := h.pipeline.Run(t.Context(), request(memberID, moderation.SilentBan{}, "quiet"))
	require.NoError(t, err)
	assert.Equal(t, moderation.NotifyNotApplicable, result.Notify)
	assert.Equal(t, "member is now silently BANNED.\n📝 Reason: quiet", result.Message)

	result, err = h.pipeline.Run(t.Context(), request(memberID, moderation.Unban{}, "appealed"))
	require.NoError(t, err)
	assert.Equal(t, moderation.StateDone, result.State)
	assert.True(t, strings.HasPrefix(result.Message, "member is now UNBANNED."))

	// Unban records nothing and sends nothing
	assert.Len(t, h.events(t, memberID, userlog.KindBan), 1)
	assert.Empty(t, h.messenger.Sent())

	published := h.publisher.Published()
	require.Len(t, published, 2)
	assert.Equal(t, "⛔ Silent Ban", published[0].Msg.Embed.Title)
	assert.Equal(t, "🎁 Unban", published[1].Msg.Embed.Title)
	assert.Equal(t, moderation.SeverityInfo.Color(), published[1].Msg.Embed.Color)

	calls := h.membership.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "unban", calls[1].Op)
	assert.Equal(t, "[ Unban by moderator ] appealed", calls[1].AuditReason)
}

func TestNotificationIncludesLinks(t *testing.T) {
	t.Parallel()

	h := setupTest(t)
	require.NoError(t, h.config.Set(t.Context(), guildID, guildconfig.SectionStaff, guildconfig.KeyAppealURL, "https://appeal.example"))

	_, err := h.pipeline.Run(t.Context(), request(memberID, moderation.Ban{}, "spam"))
	require.NoError(t, err)

	sent := h.messenger.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t,
		"**You were banned** from `Test Guild`.\n*The given reason is:* \"spam\".\n\n"+
			"This ban does not expire, but you may appeal it here:\nhttps://appeal.example",
		sent[0].Text)
}

func TestRunRejectsBatchAction(t *testing.T) {
	t.Parallel()

	h := setupTest(t)

	_, err := h.pipeline.Run(t.Context(), request(0, moderation.MassBan{Targets: []snowflake.ID{memberID}}, ""))
	require.ErrorIs(t, err, moderation.ErrBatchAction)
}

func TestRunAfterClose(t *testing.T) {
	t.Parallel()

	h := setupTest(t)
	h.pipeline.Close()

	_, err := h.pipeline.Run(t.Context(), request(memberID, moderation.Warn{}, "late"))
	require.ErrorIs(t, err, moderation.ErrPipelineClosed)
	assert.Empty(t, h.events(t, memberID, userlog.KindWarn))
}
