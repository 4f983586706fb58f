package catalogue

import (
	"fmt"

	"transitcat/internal/domain"
)

// SetDistance records the measured road distance from one stop to another.
// The reverse direction is not implied.
func (c *Catalogue) SetDistance(from, to domain.StopID, meters int) error {
	if c.frozen {
		return ErrFrozen
	}
	c.distances[stopPair{from, to}] = meters
	return nil
}

// SetDistanceByName is SetDistance addressed by stop names. Pairs naming an
// unknown stop are ignored unless the policy is strict.
func (c *Catalogue) SetDistanceByName(from, to string, meters int) error {
	if c.frozen {
		return ErrFrozen
	}

	fromID, okFrom := c.stopIndex[from]
	toID, okTo := c.stopIndex[to]
	if !okFrom || !okTo {
		if c.policy.StrictStops {
			missing := from
			if okFrom {
				missing = to
			}
			return fmt.Errorf("distance %q -> %q: %w %q", from, to, ErrUnknownStop, missing)
		}
		return nil
	}
	return c.SetDistance(fromID, toID, meters)
}

// Distance returns the measured distance from one stop to another, falling
// back to the reverse direction and then to 0.
func (c *Catalogue) Distance(from, to domain.StopID) int {
	if d, ok := c.distances[stopPair{from, to}]; ok {
		return d
	}
	if d, ok := c.distances[stopPair{to, from}]; ok {
		return d
	}
	return 0
}

func (c *Catalogue) hasDistance(from, to domain.StopID) bool {
	if _, ok := c.distances[stopPair{from, to}]; ok {
		return true
	}
	_, ok := c.distances[stopPair{to, from}]
	return ok
}

func (c *Catalogue) checkDistances() error {
	for _, r := range c.routes {
		seq := c.Expand(r)
		for i := 1; i < len(seq); i++ {
			if seq[i-1] == seq[i] || c.hasDistance(seq[i-1], seq[i]) {
				continue
			}
			return fmt.Errorf("route %q: %w between %q and %q",
				r.Name, ErrMissingDistance, c.stops[seq[i-1]].Name, c.stops[seq[i]].Name)
		}
	}
	return nil
}
