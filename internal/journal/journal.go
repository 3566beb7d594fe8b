package journal

import (
	"context"

	"codeberg.org/mutker/statehook/internal/dispatch"
	"codeberg.org/mutker/statehook/internal/errors"
	"codeberg.org/mutker/statehook/internal/logger"
)

type service struct {
	repo Repository
	cfg  Config
}

type noopJournal struct{}

// NewService returns a Journal for cfg, or a no-op journal when it is disabled.
func NewService(cfg Config, log logger.Logger) (Journal, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Dispatch journal disabled, using no-op journal")
		return &noopJournal{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return newService(repo, cfg), nil
}

func newService(repo Repository, cfg Config) Journal {
	return &service{
		repo: repo,
		cfg:  cfg,
	}
}

func (s *service) Record(ctx context.Context, result dispatch.Result) error {
	errFactory := errors.New()

	if result.Key == "" {
		return errFactory.New(ErrInvalidEntry)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.Record(NewEntry(result)); err != nil {
			return errFactory.Wrap(ErrRecordFailed, err)
		}
	}

	return nil
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}
	return nil
}

func (*noopJournal) Record(_ context.Context, _ dispatch.Result) error {
	return nil
}

func (*noopJournal) Close() error {
	return nil
}
