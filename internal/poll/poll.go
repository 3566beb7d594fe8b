package poll

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/statehook/internal/config"
	"codeberg.org/mutker/statehook/internal/dispatch"
	"codeberg.org/mutker/statehook/internal/errors"
	"codeberg.org/mutker/statehook/internal/logger"
	"codeberg.org/mutker/statehook/internal/state"
	"github.com/google/uuid"
)

// Fetcher retrieves the current telemetry snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) (state.Snapshot, error)
}

// Dispatcher fires the actions for a set of keys.
type Dispatcher interface {
	Dispatch(
		ctx context.Context,
		cycleID string,
		keys []string,
		commands config.CommandMap,
		current state.Snapshot,
		initial bool,
	) []dispatch.Result
}

// Poller runs poll cycles: fetch, diff against the previous snapshot, then
// dispatch the changed keys.
type Poller struct {
	fetcher      Fetcher
	dispatcher   Dispatcher
	commands     config.CommandMap
	store        *state.Store
	log          logger.Logger
	interval     time.Duration
	allowOverlap bool
	inline       bool

	// serializes the store transition of concurrent cycles
	mu       sync.Mutex
	inFlight atomic.Bool
	wg       sync.WaitGroup
}

type Option func(*Poller)

// WithAllowOverlap lets a tick start a cycle while the previous one is still
// fetching or dispatching.
func WithAllowOverlap(allow bool) Option {
	return func(p *Poller) {
		p.allowOverlap = allow
	}
}

// WithInlineDispatch makes RunCycle dispatch on the calling goroutine.
func WithInlineDispatch() Option {
	return func(p *Poller) {
		p.inline = true
	}
}

func New(
	fetcher Fetcher,
	dispatcher Dispatcher,
	commands config.CommandMap,
	interval time.Duration,
	log logger.Logger,
	opts ...Option,
) *Poller {
	if log == nil {
		log = logger.Default()
	}
	p := &Poller{
		fetcher:    fetcher,
		dispatcher: dispatcher,
		commands:   commands,
		store:      state.NewStore(),
		log:        log,
		interval:   interval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Store exposes the snapshots held by the poller.
func (p *Poller) Store() *state.Store {
	return p.store
}

// RunCycle performs one poll cycle. A fetch failure leaves the stored
// snapshots untouched so the next cycle diffs against the last good one.
// With overlap disallowed, RunCycle returns ErrCycleBusy while an earlier
// cycle is still fetching or dispatching.
func (p *Poller) RunCycle(ctx context.Context) error {
	errFactory := errors.New()

	if !p.allowOverlap && !p.inFlight.CompareAndSwap(false, true) {
		return errFactory.New(errors.ErrCycleBusy)
	}
	release := func() {
		if !p.allowOverlap {
			p.inFlight.Store(false)
		}
	}

	cycleID := uuid.NewString()
	initial := p.store.IsInitial()
	if initial {
		p.log.Info().Str("cycle_id", cycleID).Msg("First fetch after restart")
	}

	p.log.Debug().Str("cycle_id", cycleID).Msg("Telemetry fetch starting")

	snapshot, err := p.fetcher.Fetch(ctx)
	if err != nil {
		release()
		if errors.HasCode(err, errors.ErrFetchFailed) {
			return err
		}
		return errFactory.Wrap(errors.ErrFetchFailed, err)
	}

	p.mu.Lock()
	// another cycle may have committed while this one was fetching
	initial = p.store.IsInitial()
	previous := p.store.Previous()
	p.store.SetCurrent(snapshot)

	var keys []string
	if initial {
		keys = snapshot.Keys()
	} else {
		keys = state.ChangedKeys(previous, snapshot)
	}

	p.log.Debug().
		Str("cycle_id", cycleID).
		Int("keys", snapshot.Len()).
		Int("changed", len(keys)).
		Bool("initial", initial).
		Str("snapshot", snapshot.String()).
		Msg("Telemetry fetched")

	dispatchCtx := context.WithoutCancel(ctx)
	if p.inline {
		p.dispatcher.Dispatch(dispatchCtx, cycleID, keys, p.commands, snapshot, initial)
		release()
	} else {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer release()
			p.dispatcher.Dispatch(dispatchCtx, cycleID, keys, p.commands, snapshot, initial)
		}()
	}

	p.store.Commit()
	p.mu.Unlock()

	return nil
}

// Run starts a cycle every interval until ctx is cancelled, then waits for
// in-flight cycles and dispatches to finish. The first cycle starts one
// interval after Run is called.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info().
		Dur("interval", p.interval).
		Bool("allow_overlap", p.allowOverlap).
		Int("commands", len(p.commands)).
		Msg("Polling started")

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("Polling stopped, waiting for in-flight dispatches")
			p.Wait()
			return
		case <-ticker.C:
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				p.logCycleError(ctx, p.RunCycle(ctx))
			}()
		}
	}
}

// Wait blocks until every started cycle and dispatch has returned.
func (p *Poller) Wait() {
	p.wg.Wait()
}

func (p *Poller) logCycleError(ctx context.Context, err error) {
	if err == nil {
		return
	}

	// a fetch cut short by shutdown is not a failure
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		p.log.Debug().Err(err).Msg("Poll cycle cancelled")
		return
	}

	if errors.HasCode(err, errors.ErrCycleBusy) {
		p.log.Debug().Msg("Previous cycle still in flight, skipping tick")
		return
	}

	var coded errors.Error
	if errors.As(err, &coded) {
		p.log.ErrorWithCode(coded).Msg("Poll cycle failed")
		return
	}
	p.log.Error().Err(err).Msg("Poll cycle failed")
}
