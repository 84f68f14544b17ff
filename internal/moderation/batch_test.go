package moderation_test

import (
	"context"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/bailiff/internal/moderation"
	"github.com/robalyx/bailiff/internal/userlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	userA = snowflake.ID(501)
	userB = snowflake.ID(502)
	userC = snowflake.ID(503)
)

func setupBatch(t *testing.T) *harness {
	t.Helper()

	h := setupTest(t)
	h.membership.addUser(userA, "alpha", true)
	h.membership.addUser(userB, "bravo", true)
	h.membership.addUser(userC, "charlie", false)
	return h
}

func TestMassBanIsolatesFailures(t *testing.T) {
	t.Parallel()

	h := setupBatch(t)
	h.membership.fail[userB] = errPlatform

	req := request(0, moderation.MassBan{Targets: []snowflake.ID{userA, userB, userC}}, "")
	report, err := h.pipeline.RunBatch(t.Context(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Denied)

	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, userA, report.Outcomes[0].TargetID)
	assert.Equal(t, moderation.StateActionFailed, report.Outcomes[1].State)
	require.ErrorIs(t, report.Outcomes[1].Err, errPlatform)

	// Every target is logged, including the one whose ban failed
	for _, id := range []snowflake.ID{userA, userB, userC} {
		bans := h.events(t, id, userlog.KindBan)
		require.Len(t, bans, 1, id.String())
		assert.Equal(t, "Part of a massban. [[Jump](https://discord.com/channels/100/700/800)]", bans[0].Reason)
	}

	// Mass bans never notify
	assert.Empty(t, h.messenger.Sent())

	for _, call := range h.membership.Calls() {
		assert.Equal(t, "[ Ban by moderator ] Massban.", call.AuditReason)
		assert.Equal(t, 0, call.DeleteDays)
	}
}

func TestMassBanDeniedTargetsDoNotStopOthers(t *testing.T) {
	t.Parallel()

	h := setupBatch(t)
	h.enableModLog(t, 555)

	req := request(0, moderation.MassBan{Targets: []snowflake.ID{actorID, staffID, userA, botID}}, "")
	report, err := h.pipeline.RunBatch(t.Context(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 3, report.Denied)
	assert.Equal(t, 0, report.Failed)

	assert.Equal(t, moderation.DenySelf, report.Outcomes[0].Message)
	assert.Equal(t, moderation.DenyImmune, report.Outcomes[1].Message)
	assert.Equal(t, moderation.DenySystem, report.Outcomes[3].Message)

	assert.Len(t, h.events(t, userA, userlog.KindBan), 1)
	assert.Empty(t, h.events(t, staffID, userlog.KindBan))

	published := h.publisher.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "🚨 Massban", published[0].Msg.Embed.Title)
	for _, field := range published[0].Msg.Embed.Fields {
		assert.NotEqual(t, "📝 Reason", field.Name)
	}

	msg := moderation.BatchMessage(report)
	assert.Contains(t, msg, "1 of 4 users are now BANNED (3 denied, 0 failed).")
	assert.Contains(t, msg, "(re: 2) "+moderation.DenySelf)
}

func TestMassBanRecoversPanics(t *testing.T) {
	t.Parallel()

	h := setupBatch(t)
	h.membership.panics[userB] = true

	req := request(0, moderation.MassBan{Targets: []snowflake.ID{userA, userB, userC}}, "")
	report, err := h.pipeline.RunBatch(t.Context(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, moderation.StateError, report.Outcomes[1].State)

	// The guild state is torn down even after a panic
	assert.Equal(t, 0, h.pipeline.States().Active())
}

func TestMassBanUnresolvedAndDuplicates(t *testing.T) {
	t.Parallel()

	h := setupBatch(t)

	req := request(0, moderation.MassBan{Targets: []snowflake.ID{userA, 999999, userA}}, "")
	report, err := h.pipeline.RunBatch(t.Context(), req)
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.ErrorIs(t, report.Outcomes[1].Err, moderation.ErrTargetUnresolved)
	assert.Len(t, h.events(t, userA, userlog.KindBan), 1)

	assert.Equal(t, "All 1 users are now BANNED.", moderation.BatchMessage(&moderation.BatchReport{
		Succeeded: 1,
		Outcomes:  []moderation.BatchOutcome{{TargetID: userA, State: moderation.StateDone}},
	}))
}

func TestMassBanDeadlinePerTarget(t *testing.T) {
	t.Parallel()

	h := setupBatch(t)
	slow := snowflake.ID(504)
	h.membership.addUser(slow, "delta", true)

	for _, id := range []snowflake.ID{userA, userB, userC} {
		h.membership.delays[id] = 80 * time.Millisecond
	}
	h.membership.delays[slow] = 2 * time.Second

	// One target at a time, so the batch as a whole outlives any single deadline
	pipeline := moderation.NewPipeline(h.deps, 1, zap.NewNop(), moderation.WithItemTimeout(200*time.Millisecond))
	t.Cleanup(pipeline.Close)

	req := request(0, moderation.MassBan{Targets: []snowflake.ID{userA, slow, userB, userC}}, "")
	report, err := pipeline.RunBatch(t.Context(), req)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	assert.Equal(t, moderation.StateActionFailed, report.Outcomes[1].State)
	require.ErrorIs(t, report.Outcomes[1].Err, context.DeadlineExceeded)
	for _, i := range []int{0, 2, 3} {
		assert.Equal(t, moderation.StateDone, report.Outcomes[i].State, report.Outcomes[i].TargetID.String())
	}
}

func TestRunBatchValidation(t *testing.T) {
	t.Parallel()

	h := setupBatch(t)

	_, err := h.pipeline.RunBatch(t.Context(), request(0, moderation.MassBan{}, ""))
	require.ErrorIs(t, err, moderation.ErrNoTargets)

	_, err = h.pipeline.RunBatch(t.Context(), request(userA, moderation.Ban{}, ""))
	require.ErrorIs(t, err, moderation.ErrUnknownAction)
}
