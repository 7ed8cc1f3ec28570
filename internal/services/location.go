package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"eventauthoring/internal/domain"
)

// LocationSynchronizer is the canonical holder of the selected location.
// Both search picks and map clicks write here; a monotonically increasing
// sequence token guarantees that the most recent user action wins and that
// a late reverse-geocode response never clobbers a newer selection.
type LocationSynchronizer struct {
	mu       sync.Mutex
	geocoder domain.Geocoder
	logger   *slog.Logger
	onChange func(*domain.Location)

	root       context.Context
	rootCancel context.CancelFunc

	seq     uint64
	current *domain.Location
	closed  bool
}

// NewLocationSynchronizer returns a synchronizer with no location selected.
// onChange, if non-nil, is called (with the lock released) whenever the
// canonical location changes.
func NewLocationSynchronizer(geocoder domain.Geocoder, logger *slog.Logger, onChange func(*domain.Location)) *LocationSynchronizer {
	root, rootCancel := context.WithCancel(context.Background())
	return &LocationSynchronizer{
		geocoder:   geocoder,
		logger:     logger,
		onChange:   onChange,
		root:       root,
		rootCancel: rootCancel,
	}
}

// SelectFromSearch applies a picked search result as the canonical location.
func (l *LocationSynchronizer) SelectFromSearch(result domain.SearchResult) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.seq++
	loc := &domain.Location{
		Latitude:    result.Latitude,
		Longitude:   result.Longitude,
		DisplayName: result.DisplayName,
	}
	l.current = loc
	l.mu.Unlock()
	l.notify(loc)
}

// SelectFromMapClick applies the clicked coordinate synchronously, with a
// placeholder label, and fills in the human-readable name asynchronously
// once reverse geocoding completes. The reverse lookup is best-effort: on
// failure the placeholder stays, and a response that arrives after a newer
// selection is discarded.
func (l *LocationSynchronizer) SelectFromMapClick(lat, lon float64) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.seq++
	token := l.seq
	loc := &domain.Location{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: placeholderLabel(lat, lon),
	}
	l.current = loc
	l.mu.Unlock()
	l.notify(loc)

	go l.resolveName(token, lat, lon)
}

// Clear resets the canonical location to nothing selected.
func (l *LocationSynchronizer) Clear() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.seq++
	l.current = nil
	l.mu.Unlock()
	l.notify(nil)
}

// Current returns a copy of the canonical location, or nil when none is
// selected.
func (l *LocationSynchronizer) Current() *domain.Location {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return nil
	}
	loc := *l.current
	return &loc
}

// Close cancels any pending reverse lookup. Late responses become no-ops.
func (l *LocationSynchronizer) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.seq++
	l.mu.Unlock()
	l.rootCancel()
}

func (l *LocationSynchronizer) resolveName(token uint64, lat, lon float64) {
	name, err := l.geocoder.Reverse(l.root, lat, lon)

	l.mu.Lock()
	if l.closed || token != l.seq {
		l.mu.Unlock()
		l.logger.Debug("discarding stale reverse geocode response", "lat", lat, "lon", lon)
		return
	}
	if err != nil || name == "" {
		// Keep the placeholder; reverse geocoding is advisory.
		l.mu.Unlock()
		if err != nil {
			l.logger.Debug("reverse geocode failed", "lat", lat, "lon", lon, "error", err)
		}
		return
	}
	loc := &domain.Location{Latitude: lat, Longitude: lon, DisplayName: name}
	l.current = loc
	l.mu.Unlock()
	l.notify(loc)
}

func (l *LocationSynchronizer) notify(loc *domain.Location) {
	if l.onChange != nil {
		l.onChange(loc)
	}
}

func placeholderLabel(lat, lon float64) string {
	return fmt.Sprintf("Dropped pin (%.5f, %.5f)", lat, lon)
}
