package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
)

const (
	// MaxHours bounds a request window to five years.
	MaxHours = 43830
	MaxLimit = 20000
)

// Request is a clock-relative fetch: the last Hours hours up to the moment
// it is resolved. Unlike domain.Query it is stable over time, so it can key
// the fused-result cache.
type Request struct {
	Hours        int
	MinMagnitude float64
	Limit        int
	Region       string
}

// Key identifies the request in the cache.
func (r Request) Key() string {
	return fmt.Sprintf("h=%d|m=%s|l=%d|r=%s",
		r.Hours, strconv.FormatFloat(r.MinMagnitude, 'f', -1, 64), r.Limit, strings.ToLower(strings.TrimSpace(r.Region)))
}

// Query resolves the request against now.
func (r Request) Query(now time.Time) (domain.Query, error) {
	if r.Hours <= 0 || r.Hours > MaxHours {
		return domain.Query{}, errors.Join(domain.ErrInvalidQuery, fmt.Errorf("hours must be between 1 and %d", MaxHours))
	}
	if r.Limit < 0 || r.Limit > MaxLimit {
		return domain.Query{}, errors.Join(domain.ErrInvalidQuery, fmt.Errorf("limit must be between 0 and %d", MaxLimit))
	}
	if r.MinMagnitude < 0 {
		return domain.Query{}, errors.Join(domain.ErrInvalidQuery, errors.New("min_magnitude must not be negative"))
	}
	box, err := domain.LookupRegion(r.Region)
	if err != nil {
		return domain.Query{}, err
	}
	return domain.Query{
		Start:        now.Add(-time.Duration(r.Hours) * time.Hour),
		End:          now,
		MinMagnitude: r.MinMagnitude,
		Limit:        r.Limit,
		Region:       box,
	}, nil
}

// RequestFor converts a window duration to a Request, rounding up to whole
// hours.
func RequestFor(window time.Duration, minMagnitude float64) Request {
	hours := int((window + time.Hour - 1) / time.Hour)
	return Request{Hours: max(hours, 1), MinMagnitude: minMagnitude}
}
