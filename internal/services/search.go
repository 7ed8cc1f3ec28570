package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"eventauthoring/internal/domain"
)

// minQueryLength is the smallest query that triggers a lookup. Anything
// shorter clears the results immediately, without waiting for the debounce.
const minQueryLength = 2

// SearchCoordinator owns the free-text location query: it debounces input,
// keeps at most one geocoding request in flight, and discards any response
// that no longer matches the latest query. The most recently issued intent
// always wins; superseded requests are cancelled and their late responses
// are dropped on a sequence-token check.
type SearchCoordinator struct {
	mu        sync.Mutex
	geocoder  domain.Geocoder
	logger    *slog.Logger
	debounce  time.Duration
	onResults func([]domain.SearchResult)

	root       context.Context
	rootCancel context.CancelFunc

	seq       uint64
	query     string
	results   []domain.SearchResult
	searching bool
	timer     *time.Timer
	cancel    context.CancelFunc // cancels the in-flight request, if any
	closed    bool
}

// NewSearchCoordinator returns a coordinator that debounces queries by the
// given interval. onResults, if non-nil, is called (with the lock released)
// whenever the visible result set changes.
func NewSearchCoordinator(geocoder domain.Geocoder, debounce time.Duration, logger *slog.Logger, onResults func([]domain.SearchResult)) *SearchCoordinator {
	root, rootCancel := context.WithCancel(context.Background())
	return &SearchCoordinator{
		geocoder:   geocoder,
		logger:     logger,
		debounce:   debounce,
		onResults:  onResults,
		root:       root,
		rootCancel: rootCancel,
	}
}

// SetQuery updates the active query and restarts the debounce timer. A query
// shorter than two significant characters never triggers a request and
// clears prior results at once.
func (s *SearchCoordinator) SetQuery(text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.query = text
	s.seq++
	s.stopPendingLocked()

	if len(strings.TrimSpace(text)) < minQueryLength {
		s.results = nil
		s.searching = false
		s.mu.Unlock()
		s.notify(nil)
		return
	}

	seq := s.seq
	query := text
	s.timer = time.AfterFunc(s.debounce, func() {
		s.fire(seq, query)
	})
	s.mu.Unlock()
}

// Clear empties the query and the visible result set immediately, without
// waiting for any timer. Used when a result is selected or the field is
// explicitly cleared.
func (s *SearchCoordinator) Clear() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.query = ""
	s.seq++
	s.stopPendingLocked()
	s.results = nil
	s.searching = false
	s.mu.Unlock()
	s.notify(nil)
}

// Results returns the most recent completed result set, in backend order.
func (s *SearchCoordinator) Results() []domain.SearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SearchResult, len(s.results))
	copy(out, s.results)
	return out
}

// IsSearching reports whether a request is outstanding.
func (s *SearchCoordinator) IsSearching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searching
}

// Query returns the current query text.
func (s *SearchCoordinator) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Close cancels the timer and any in-flight request. Late callbacks become
// no-ops.
func (s *SearchCoordinator) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.seq++
	s.stopPendingLocked()
	s.mu.Unlock()
	s.rootCancel()
}

// fire runs when the debounce timer expires. It issues exactly one request
// for the query captured at arm time and applies the response only if no
// newer intent arrived meanwhile.
func (s *SearchCoordinator) fire(seq uint64, query string) {
	s.mu.Lock()
	if s.closed || seq != s.seq {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(s.root)
	s.cancel = cancel
	s.searching = true
	s.mu.Unlock()

	results, err := s.geocoder.Search(ctx, query)
	cancel()

	s.mu.Lock()
	if s.closed || seq != s.seq {
		s.mu.Unlock()
		s.logger.Debug("discarding stale search response", "query", query)
		return
	}
	s.searching = false
	if err != nil {
		// Search is advisory: failures degrade to an empty result set.
		s.results = nil
		s.mu.Unlock()
		s.logger.Debug("geocode search failed", "query", query, "error", err)
		s.notify(nil)
		return
	}
	s.results = results
	s.mu.Unlock()
	s.notify(results)
}

// stopPendingLocked cancels the debounce timer and the in-flight request.
// Caller holds the lock.
func (s *SearchCoordinator) stopPendingLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *SearchCoordinator) notify(results []domain.SearchResult) {
	if s.onResults != nil {
		s.onResults(results)
	}
}
