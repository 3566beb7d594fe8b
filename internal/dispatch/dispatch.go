package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"codeberg.org/mutker/statehook/internal/config"
	"codeberg.org/mutker/statehook/internal/errors"
	"codeberg.org/mutker/statehook/internal/logger"
	"codeberg.org/mutker/statehook/internal/state"
	"github.com/google/uuid"
)

// Outcome is what happened to one key during a dispatch pass.
type Outcome string

const (
	OutcomeExecuted      Outcome = "executed"
	OutcomeSkipped       Outcome = "skipped"
	OutcomeUnmappedKey   Outcome = "unmapped_key"
	OutcomeUnmappedValue Outcome = "unmapped_value"
	OutcomeFailed        Outcome = "failed"
)

// Result describes the handling of a single key.
type Result struct {
	CycleID    string
	Key        string
	Value      state.Value
	Action     string
	Outcome    Outcome
	StatusCode int
	Initial    bool
	Err        error
	At         time.Time
}

// Trigger performs an action call and reports the response status.
type Trigger interface {
	Trigger(ctx context.Context, action string) (int, error)
}

// Recorder receives every Result. Implementations must not block for long;
// the dispatch pass waits for Record to return.
type Recorder interface {
	Record(ctx context.Context, result Result) error
}

// Dispatcher resolves changed keys to actions and fires them.
type Dispatcher struct {
	trigger  Trigger
	recorder Recorder
	log      logger.Logger
	now      func() time.Time
}

type Option func(*Dispatcher)

// WithRecorder sends every Result to r.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// WithClock overrides the time source used to stamp results.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func New(trigger Trigger, log logger.Logger, opts ...Option) *Dispatcher {
	if log == nil {
		log = logger.Default()
	}
	d := &Dispatcher{
		trigger: trigger,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch handles keys in order against the command map and the current
// snapshot. On the initial fetch only keys whose spec opts in with
// ExecuteOnInitialFetch are executed. Problems with one key are logged and
// recorded; they never stop the remaining keys, and Dispatch itself never
// fails.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	cycleID string,
	keys []string,
	commands config.CommandMap,
	current state.Snapshot,
	initial bool,
) []Result {
	results := make([]Result, 0, len(keys))

	for _, key := range keys {
		result := d.dispatchKey(ctx, cycleID, key, commands, current, initial)
		results = append(results, result)

		if d.recorder != nil {
			if err := d.recorder.Record(ctx, result); err != nil {
				d.log.Warn().Err(err).Str("cycle_id", cycleID).Str("key", key).Msg("Failed to record dispatch result")
			}
		}
	}

	return results
}

func (d *Dispatcher) dispatchKey(
	ctx context.Context,
	cycleID, key string,
	commands config.CommandMap,
	current state.Snapshot,
	initial bool,
) (result Result) {
	value, _ := current.Get(key)

	result = Result{
		CycleID: cycleID,
		Key:     key,
		Value:   value,
		Initial: initial,
	}

	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			d.log.Error().
				Str("cycle_id", cycleID).
				Str("key", key).
				Str("correlation_id", correlationID).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Dispatch panicked")

			result.Outcome = OutcomeFailed
			result.Err = errors.New().WithData(errors.ErrInternal,
				fmt.Sprintf("dispatch panic (correlation_id: %s)", correlationID))
		}
		result.At = d.now()
	}()

	spec, ok := commands.Lookup(key)
	if !ok {
		d.log.Warn().
			Str("cycle_id", cycleID).
			Str("key", key).
			Str("value", value.String()).
			Msg("No command defined for key")
		result.Outcome = OutcomeUnmappedKey
		return result
	}

	action, ok := spec.Action(value.String())
	if !ok {
		d.log.Warn().
			Str("cycle_id", cycleID).
			Str("key", key).
			Str("value", value.String()).
			Msgf("No action defined for value %s under key %s", value, key)
		result.Outcome = OutcomeUnmappedValue
		return result
	}
	result.Action = action

	if initial && !spec.ExecuteOnInitialFetch {
		d.log.Info().
			Str("cycle_id", cycleID).
			Str("key", key).
			Str("value", value.String()).
			Str("action", action).
			Msg("Skipping action on initial fetch")
		result.Outcome = OutcomeSkipped
		return result
	}

	d.log.Info().
		Str("cycle_id", cycleID).
		Str("key", key).
		Str("value", value.String()).
		Str("action", action).
		Msgf("Executing action %s because %s changed to %s", action, key, value)

	status, err := d.trigger.Trigger(ctx, action)
	result.StatusCode = status
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		d.log.Error().
			Err(err).
			Str("cycle_id", cycleID).
			Str("key", key).
			Str("action", action).
			Int("status", status).
			Msg("Action call failed")
		return result
	}

	result.Outcome = OutcomeExecuted
	d.log.Info().
		Str("cycle_id", cycleID).
		Str("key", key).
		Str("action", action).
		Int("status", status).
		Msg("Action call completed")

	return result
}
