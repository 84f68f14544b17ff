package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/robalyx/bailiff/internal/guildconfig"
	"github.com/robalyx/bailiff/internal/userlog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/robalyx/bailiff/internal/moderation"

// State is a step of the pipeline state machine.
type State int

const (
	StateReceived State = iota
	StateGuarded
	StateLogged
	StateNotified
	StateExecuted
	StateAudited
	StateDone
	// StateDenied ends a request rejected by the guard.
	StateDenied
	// StateActionFailed ends a request whose membership call failed. The
	// ledger entry is kept.
	StateActionFailed
	// StateError ends a request that failed before any mutation, or whose
	// ledger write failed.
	StateError
)

var stateNames = map[State]string{
	StateReceived:     "Received",
	StateGuarded:      "Guarded",
	StateLogged:       "Logged",
	StateNotified:     "Notified",
	StateExecuted:     "Executed",
	StateAudited:      "Audited",
	StateDone:         "Done",
	StateDenied:       "Denied",
	StateActionFailed: "ActionFailed",
	StateError:        "Error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Failed reports whether the state is a terminal failure.
func (s State) Failed() bool {
	return s == StateDenied || s == StateActionFailed || s == StateError
}

// Result is the outcome of one pipeline invocation.
type Result struct {
	RequestID uuid.UUID
	Target    Identity
	State     State
	Decision  Decision
	// Count is the ledger count of the recorded kind after the write, which
	// is the warning number for warns.
	Count   int
	Notify  NotifyOutcome
	Audit   AuditOutcome
	Err     error
	Message string
}

// Dependencies are the collaborators of a Pipeline.
type Dependencies struct {
	Guard      GuardEvaluator
	Ledger     Ledger
	Membership Membership
	Config     ConfigProvider
	Notifier   *Notifier
	Executor   *Executor
	Audit      *AuditEmitter
}

// Pipeline sequences guard, ledger write, notification, execution and audit
// for every moderation action.
type Pipeline struct {
	deps             Dependencies
	states           *GuildStates
	batchConcurrency int
	itemTimeout      time.Duration
	tracer           trace.Tracer
	logger           *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithItemTimeout bounds each target of a batch action separately. Zero
// leaves items bounded only by the batch context.
func WithItemTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.itemTimeout = d
	}
}

// NewPipeline creates a Pipeline. batchConcurrency bounds the number of mass
// ban targets processed at once.
func NewPipeline(deps Dependencies, batchConcurrency int, logger *zap.Logger, opts ...Option) *Pipeline {
	if batchConcurrency < 1 {
		batchConcurrency = 1
	}
	p := &Pipeline{
		deps:             deps,
		states:           NewGuildStates(),
		batchConcurrency: batchConcurrency,
		tracer:           otel.Tracer(tracerName),
		logger:           logger.Named("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// States exposes the per-guild in-flight registry.
func (p *Pipeline) States() *GuildStates {
	return p.states
}

// Close stops accepting new requests.
func (p *Pipeline) Close() {
	p.states.Close()
}

// Run processes a single-target action. Validation and resolution failures
// are returned as errors before anything is written. Guard denials and
// failed membership calls are reported through the Result.
func (p *Pipeline) Run(ctx context.Context, req ActionRequest) (*Result, error) {
	if err := Validate(req.Action); err != nil {
		return nil, err
	}
	if req.Action.Kind() == KindMassBan {
		return nil, ErrBatchAction
	}

	return p.runTarget(ctx, req, req.TargetID, req.Reason)
}

// runTarget runs the full sequence for one target. ledgerReason is what gets
// stored; req.Reason is what the platform and the audit record see.
func (p *Pipeline) runTarget(
	ctx context.Context, req ActionRequest, targetID snowflake.ID, ledgerReason string,
) (*Result, error) {
	kind := req.Action.Kind()

	ctx, span := p.tracer.Start(ctx, "moderation.run", trace.WithAttributes(
		attribute.String("request_id", req.ID.String()),
		attribute.String("kind", kind.String()),
		attribute.Int64("guild_id", int64(req.Guild.ID)),
		attribute.Int64("target_id", int64(targetID)),
	))
	defer span.End()

	release, ok := p.states.Begin(req.Guild.ID, targetID, kind)
	if !ok {
		return nil, ErrPipelineClosed
	}
	defer release()

	logger := p.logger.With(
		zap.String("requestID", req.ID.String()),
		zap.Uint64("guildID", uint64(req.Guild.ID)),
		zap.Uint64("targetID", uint64(targetID)),
		zap.String("kind", kind.String()))

	// Received
	target, err := p.resolveTarget(ctx, req.Guild.ID, targetID, kind)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	staffRoleID, err := p.staffRole(ctx, req.Guild.ID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result := &Result{
		RequestID: req.ID,
		Target:    target.Identity,
		State:     StateReceived,
		Notify:    NotifyNotApplicable,
		Audit:     AuditSkipped,
	}

	// Guarded
	result.Decision = p.deps.Guard.Evaluate(req.Actor.ID, target, kind, staffRoleID)
	if !result.Decision.Allowed {
		result.State = StateDenied
		result.Message = result.Decision.Reason
		span.SetAttributes(attribute.String("denied", result.Decision.Reason))
		logger.Debug("Action denied", zap.String("reason", result.Decision.Reason))
		return result, nil
	}
	result.State = StateGuarded

	// Logged
	if eventKind, ok := kind.EventKind(); ok {
		issuer := userlog.Issuer{ID: req.Actor.ID, Name: req.Actor.Name}
		count, err := p.deps.Ledger.AppendEvent(ctx, req.Guild.ID, targetID, eventKind, issuer, ledgerReason)
		if err != nil {
			logger.Error("Failed to write log entry", zap.Error(err))
			span.SetStatus(codes.Error, err.Error())
			result.State = StateError
			result.Err = fmt.Errorf("failed to write log entry: %w", err)
			result.Message = "Failed to record the action, nothing was done."
			return result, nil
		}
		result.Count = count
	}
	result.State = StateLogged

	// Notified
	if kind.Notifies() {
		info := p.notifyInfo(ctx, req.Guild, result.Count)
		result.Notify = p.deps.Notifier.Notify(ctx, target, kind, req.Reason, info)
	}
	result.State = StateNotified

	// Executed
	if err := p.deps.Executor.Execute(ctx, req.Guild.ID, req.Action, target, req.Reason, req.Actor); err != nil {
		span.SetStatus(codes.Error, err.Error())
		result.State = StateActionFailed
		result.Err = err
		result.Message = FailureMessage(kind, target.Identity, err)
		return result, nil
	}
	result.State = StateExecuted

	// Audited
	outcome, err := p.deps.Audit.Emit(ctx, AuditRecord{
		GuildID:   req.Guild.ID,
		Kind:      kind,
		Target:    target.Identity,
		Actor:     req.Actor,
		Reason:    req.Reason,
		Origin:    req.Origin,
		WarnCount: result.Count,
	})
	if err != nil {
		logger.Warn("Audit record not published", zap.Error(err))
	}
	result.Audit = outcome

	result.State = StateDone
	result.Message = SuccessMessage(req.Action, target.Identity, req.Reason, result.Count)

	logger.Info("Action completed",
		zap.String("notify", result.Notify.String()),
		zap.String("audit", result.Audit.String()),
		zap.Int("count", result.Count))

	return result, nil
}

// resolveTarget looks up the user and their membership. Kicks need a member.
func (p *Pipeline) resolveTarget(ctx context.Context, guildID, userID snowflake.ID, kind ActionKind) (Target, error) {
	identity, err := p.deps.Membership.ResolveUser(ctx, userID)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %d: %w", ErrTargetUnresolved, userID, err)
	}

	member, err := p.deps.Membership.ResolveMember(ctx, guildID, userID)
	switch {
	case errors.Is(err, ErrMemberAbsent):
		member = nil
	case err != nil:
		return Target{}, fmt.Errorf("%w: %d: %w", ErrTargetUnresolved, userID, err)
	}

	if kind == KindKick && member == nil {
		return Target{}, fmt.Errorf("%w: %d is not a member", ErrTargetUnresolved, userID)
	}

	return Target{Identity: identity, Member: member}, nil
}

// staffRole returns the guild's immune role, or zero when none is configured.
func (p *Pipeline) staffRole(ctx context.Context, guildID snowflake.ID) (snowflake.ID, error) {
	value, ok, err := p.deps.Config.Get(ctx, guildID, guildconfig.SectionStaff, guildconfig.KeyStaffRole)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve staff role: %w", err)
	}
	if !ok {
		return 0, nil
	}

	roleID, err := snowflake.Parse(value)
	if err != nil {
		return 0, fmt.Errorf("%w: staff.staffrole=%q", guildconfig.ErrNotSnowflake, value)
	}

	return roleID, nil
}

// notifyInfo gathers the optional links rendered into notifications. Config
// failures only drop the link.
func (p *Pipeline) notifyInfo(ctx context.Context, guild Guild, count int) NotifyInfo {
	info := NotifyInfo{GuildName: guild.Name, WarnCount: count}

	if value, ok, err := p.deps.Config.Get(ctx, guild.ID, guildconfig.SectionStaff, guildconfig.KeyAppealURL); err == nil && ok {
		info.AppealURL = value
	}
	if value, ok, err := p.deps.Config.Get(ctx, guild.ID, guildconfig.SectionStaff, guildconfig.KeyRulesURL); err == nil && ok {
		info.RulesURL = value
	}

	return info
}
