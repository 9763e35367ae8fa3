package walker

import (
	"context"
	"errors"
	"sync"

	"github.com/playperu/citywalk/internal/citywalk"
)

// ErrSubmissionInFlight is returned while a visit for the same stop is still
// being submitted.
var ErrSubmissionInFlight = errors.New("visit submission already in flight")

// VisitSubmitter sends visits to the server, at most one per stop at a time.
type VisitSubmitter struct {
	api ProgressAPI

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewVisitSubmitter(api ProgressAPI) *VisitSubmitter {
	return &VisitSubmitter{api: api, inFlight: make(map[string]struct{})}
}

func (s *VisitSubmitter) Submit(ctx context.Context, pointID, progressID string) (citywalk.VisitResult, error) {
	s.mu.Lock()
	if _, busy := s.inFlight[pointID]; busy {
		s.mu.Unlock()
		return citywalk.VisitResult{}, ErrSubmissionInFlight
	}
	s.inFlight[pointID] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, pointID)
		s.mu.Unlock()
	}()

	return s.api.Visit(ctx, pointID, progressID)
}
