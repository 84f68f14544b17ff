package moderation_test

import (
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/bailiff/internal/moderation"
	"github.com/stretchr/testify/assert"
)

var allKinds = []moderation.ActionKind{
	moderation.KindKick,
	moderation.KindBan,
	moderation.KindTimedBan,
	moderation.KindSilentBan,
	moderation.KindUnban,
	moderation.KindMassBan,
	moderation.KindWarn,
	moderation.KindNote,
}

func TestGuardDeniesSelfAndSystem(t *testing.T) {
	t.Parallel()

	guard := moderation.NewGuard(botID)
	self := moderation.Target{Identity: moderation.Identity{ID: actorID}, Member: &moderation.Member{}}
	system := moderation.Target{Identity: moderation.Identity{ID: botID}, Member: &moderation.Member{}}

	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			decision := guard.Evaluate(actorID, self, kind, staffRID)
			assert.False(t, decision.Allowed)
			assert.Equal(t, moderation.DenySelf, decision.Reason)

			decision = guard.Evaluate(actorID, system, kind, staffRID)
			assert.False(t, decision.Allowed)
			assert.Equal(t, moderation.DenySystem, decision.Reason)
		})
	}
}

func TestGuardImmunity(t *testing.T) {
	t.Parallel()

	guard := moderation.NewGuard(botID)
	staff := moderation.Target{
		Identity: moderation.Identity{ID: staffID},
		Member:   &moderation.Member{RoleIDs: []snowflake.ID{42, staffRID}},
	}

	immune := map[moderation.ActionKind]bool{
		moderation.KindKick:      true,
		moderation.KindBan:       true,
		moderation.KindTimedBan:  true,
		moderation.KindSilentBan: true,
		moderation.KindWarn:      true,
		moderation.KindMassBan:   true,
		moderation.KindUnban:     false,
		moderation.KindNote:      false,
	}

	for kind, wantDenied := range immune {
		decision := guard.Evaluate(actorID, staff, kind, staffRID)
		if wantDenied {
			assert.False(t, decision.Allowed, kind.String())
			assert.Equal(t, moderation.DenyImmune, decision.Reason, kind.String())
		} else {
			assert.True(t, decision.Allowed, kind.String())
		}
	}
}

func TestGuardAllowsRegularTargets(t *testing.T) {
	t.Parallel()

	guard := moderation.NewGuard(botID)

	tests := []struct {
		name        string
		target      moderation.Target
		staffRoleID snowflake.ID
	}{
		{
			name:        "member without staff role",
			target:      moderation.Target{Identity: moderation.Identity{ID: memberID}, Member: &moderation.Member{RoleIDs: []snowflake.ID{42}}},
			staffRoleID: staffRID,
		},
		{
			name:        "non-member",
			target:      moderation.Target{Identity: moderation.Identity{ID: strayID}},
			staffRoleID: staffRID,
		},
		{
			name:        "no staff role configured",
			target:      moderation.Target{Identity: moderation.Identity{ID: staffID}, Member: &moderation.Member{RoleIDs: []snowflake.ID{staffRID}}},
			staffRoleID: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			for _, kind := range allKinds {
				decision := guard.Evaluate(actorID, tt.target, kind, tt.staffRoleID)
				assert.True(t, decision.Allowed, kind.String())
			}
		})
	}
}

func TestGuardSelfRuleWinsOverImmunity(t *testing.T) {
	t.Parallel()

	guard := moderation.NewGuard(botID)
	self := moderation.Target{
		Identity: moderation.Identity{ID: staffID},
		Member:   &moderation.Member{RoleIDs: []snowflake.ID{staffRID}},
	}

	decision := guard.Evaluate(staffID, self, moderation.KindBan, staffRID)
	assert.Equal(t, moderation.DenySelf, decision.Reason)
}
