package moderation

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// BatchOutcome is the result of one target of a batch action.
type BatchOutcome struct {
	TargetID snowflake.ID
	State    State
	Message  string
	Err      error
}

// BatchReport aggregates a batch action.
type BatchReport struct {
	Succeeded int
	Denied    int
	Failed    int
	// Outcomes follow the order of the requested targets.
	Outcomes []BatchOutcome
}

// MassBanLedgerReason is stored for every target of a mass ban.
func MassBanLedgerReason(jumpURL string) string {
	if jumpURL == "" {
		return "Part of a massban."
	}
	return fmt.Sprintf("Part of a massban. [[Jump](%s)]", jumpURL)
}

// RunBatch runs the single-target sequence for every target of a mass ban.
// Each target is isolated: a denial, failure or panic on one never stops the
// others. With WithItemTimeout every target gets its own deadline, so ctx
// should only carry cancellation.
func (p *Pipeline) RunBatch(ctx context.Context, req ActionRequest) (*BatchReport, error) {
	massBan, ok := req.Action.(MassBan)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a batch action", ErrUnknownAction, kindOf(req.Action))
	}
	if err := Validate(massBan); err != nil {
		return nil, err
	}

	targets := dedupe(massBan.Targets)
	ledgerReason := MassBanLedgerReason(req.Origin.JumpURL)

	ctx, span := p.tracer.Start(ctx, "moderation.batch")
	defer span.End()

	// Process targets concurrently
	var (
		outcomes = make([]BatchOutcome, len(targets))
		wp       = pool.New().WithMaxGoroutines(p.batchConcurrency)
	)

	for i, targetID := range targets {
		wp.Go(func() {
			outcomes[i] = p.runBatchItem(ctx, req, targetID, ledgerReason)
		})
	}

	wp.Wait()

	report := &BatchReport{Outcomes: outcomes}
	for _, outcome := range outcomes {
		switch outcome.State {
		case StateDone:
			report.Succeeded++
		case StateDenied:
			report.Denied++
		case StateReceived, StateGuarded, StateLogged, StateNotified, StateExecuted, StateAudited,
			StateActionFailed, StateError:
			report.Failed++
		}
	}

	p.logger.Info("Batch completed",
		zap.String("requestID", req.ID.String()),
		zap.Uint64("guildID", uint64(req.Guild.ID)),
		zap.Int("targets", len(targets)),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("denied", report.Denied),
		zap.Int("failed", report.Failed))

	return report, nil
}

// runBatchItem runs one target and converts every failure mode, including a
// panic, into an outcome.
func (p *Pipeline) runBatchItem(
	ctx context.Context, req ActionRequest, targetID snowflake.ID, ledgerReason string,
) (outcome BatchOutcome) {
	outcome.TargetID = targetID

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Batch item panicked",
				zap.String("requestID", req.ID.String()),
				zap.Uint64("targetID", uint64(targetID)),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))

			outcome.State = StateError
			outcome.Err = fmt.Errorf("%w: %v", errBatchPanic, r)
			outcome.Message = "internal error."
		}
	}()

	if p.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.itemTimeout)
		defer cancel()
	}

	// Mass bans never pass a free-text reason to the platform or audit record
	itemReq := req
	itemReq.TargetID = targetID
	itemReq.Reason = ""

	result, err := p.runTarget(ctx, itemReq, targetID, ledgerReason)
	if err != nil {
		outcome.State = StateError
		outcome.Err = err
		outcome.Message = errorMessage(err)
		return outcome
	}

	outcome.State = result.State
	outcome.Err = result.Err
	outcome.Message = result.Message

	return outcome
}

var errBatchPanic = errors.New("batch item panicked")

func errorMessage(err error) string {
	switch {
	case errors.Is(err, ErrTargetUnresolved):
		return "could not resolve this user."
	case errors.Is(err, ErrPipelineClosed):
		return "the bot is shutting down."
	default:
		return "internal error."
	}
}

func dedupe(ids []snowflake.ID) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(ids))
	unique := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}

func kindOf(action Action) string {
	if action == nil {
		return "nil"
	}
	return action.Kind().String()
}
