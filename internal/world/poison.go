package world

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Poison is an active damage-over-time effect.
type Poison struct {
	Start      time.Time
	Duration   time.Duration
	TickDamage int
}

func NewPoison(start time.Time, duration time.Duration, tickDamage int) *Poison {
	return &Poison{Start: start, Duration: duration, TickDamage: tickDamage}
}

func (p *Poison) Elapsed(now time.Time) time.Duration {
	return now.Sub(p.Start)
}

// Expired reports elapsed > duration.
func (p *Poison) Expired(now time.Time) bool {
	return p.Elapsed(now) > p.Duration
}

// Remaining is the time left, never negative.
func (p *Poison) Remaining(now time.Time) time.Duration {
	r := p.Duration - p.Elapsed(now)
	if r < 0 {
		return 0
	}
	return r
}

// String encodes the poison as "startMs:durationMs:tickDamage" for storage.
func (p *Poison) String() string {
	return fmt.Sprintf("%d:%d:%d", p.Start.UnixMilli(), p.Duration.Milliseconds(), p.TickDamage)
}

// ParsePoison decodes String's format. An empty string is no poison.
func ParsePoison(s string) (*Poison, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("poison %q: want start:duration:damage", s)
	}
	var vals [3]int64
	for i, part := range parts {
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("poison %q: %w", s, err)
		}
		vals[i] = v
	}
	return &Poison{
		Start:      time.UnixMilli(vals[0]),
		Duration:   time.Duration(vals[1]) * time.Millisecond,
		TickDamage: int(vals[2]),
	}, nil
}
