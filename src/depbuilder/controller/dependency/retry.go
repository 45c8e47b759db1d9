package dependency

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/internal/errors"
	"github.com/uber/depbuilder/src/depbuilder/repository/cache"
)

// _maxAttempts bounds dispatches per query. Only ConnectionLost and PoolExhausted are retried.
const _maxAttempts = 2

// execute dispatches req and encodes the answer, retrying once against fresh pool state when
// the failure is retryable.
func (s *service) execute(ctx context.Context, req *entity.Request, doc *cache.Content, encode encodeFunc) ([]byte, error) {
	var (
		value []byte
		err   error
	)
	for attempt := 1; attempt <= _maxAttempts; attempt++ {
		value, err = s.attempt(ctx, req, doc, encode)
		if err == nil || !errors.IsRetryable(err) || attempt == _maxAttempts {
			break
		}
		if ctx.Err() != nil {
			return nil, errors.FromContext(ctx)
		}
		if s.checkOpen() != nil {
			break
		}
		s.metrics.Retry()
		s.logger.Infow("retrying query",
			"method", req.Method.String(),
			"file", req.Path,
			"correlationID", req.CorrelationID,
			"error", err,
		)
	}
	return value, err
}

// attempt runs one dispatch on its own lease and encodes the answer before releasing it. The
// lease is released with the outcome of the attempt on every path, including a panic in the
// dispatcher. An answer that cannot be decoded retires the handle; an error reply does not.
func (s *service) attempt(ctx context.Context, req *entity.Request, doc *cache.Content, encode encodeFunc) ([]byte, error) {
	lease, err := s.pool.Acquire(ctx, 0)
	if err != nil {
		return nil, err
	}

	released := false
	defer func() {
		if !released {
			s.pool.Release(lease, entity.OutcomeProtocolError)
		}
	}()

	resp, err := s.dispatcher.Dispatch(ctx, lease, req, doc)
	outcome := entity.OutcomeFor(err)
	var value []byte
	if err == nil {
		if resp.Failure != nil {
			err = errors.Wrap(errors.ProtocolError, resp.Failure)
		} else if value, err = encodeResult(resp.Payload, encode); err != nil {
			outcome = entity.OutcomeProtocolError
		}
	}
	s.pool.Release(lease, outcome)
	released = true
	return value, err
}

// encodeResult runs encode, reporting an uncategorized failure as a ProtocolError.
func encodeResult(payload json.RawMessage, encode encodeFunc) ([]byte, error) {
	value, err := encode(payload)
	if err != nil {
		if _, ok := errors.CategoryOf(err); !ok {
			err = errors.Wrap(errors.ProtocolError, fmt.Errorf("encoding result: %w", err))
		}
		return nil, err
	}
	return value, nil
}
