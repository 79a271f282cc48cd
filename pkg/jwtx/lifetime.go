package jwtx

import (
	"errors"
	"fmt"
	"time"
)

// Unit is the granularity a token lifetime is expressed in.
type Unit int

const (
	Second Unit = iota + 1
	Minute
	Hour
	Day
)

var ErrInvalidLifetime = errors.New("jwtx: invalid token lifetime")

// Duration returns the length of one unit, or zero for an unknown unit.
func (u Unit) Duration() time.Duration {
	switch u {
	case Second:
		return time.Second
	case Minute:
		return time.Minute
	case Hour:
		return time.Hour
	case Day:
		return 24 * time.Hour
	default:
		return 0
	}
}

func (u Unit) String() string {
	switch u {
	case Second:
		return "seconds"
	case Minute:
		return "minutes"
	case Hour:
		return "hours"
	case Day:
		return "days"
	default:
		return fmt.Sprintf("Unit(%d)", int(u))
	}
}

// Lifetime is an amount of a Unit, e.g. 30 minutes.
type Lifetime struct {
	Amount int
	Unit   Unit
}

// LifetimeOf expresses d in the largest unit that divides it exactly.
// Sub-second remainders are dropped.
func LifetimeOf(d time.Duration) Lifetime {
	for _, u := range []Unit{Day, Hour, Minute} {
		if d%u.Duration() == 0 {
			return Lifetime{Amount: int(d / u.Duration()), Unit: u}
		}
	}
	return Lifetime{Amount: int(d / time.Second), Unit: Second}
}

func (l Lifetime) Duration() time.Duration {
	return time.Duration(l.Amount) * l.Unit.Duration()
}

func (l Lifetime) String() string {
	return fmt.Sprintf("%d %s", l.Amount, l.Unit)
}

// Window returns the (issued, expiry) pair for a token minted at issuedAt.
// issued is truncated to whole seconds because that is the precision
// carried on the wire.
func Window(issuedAt time.Time, amount int, unit Unit) (time.Time, time.Time, error) {
	if amount <= 0 || unit.Duration() == 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %d %s", ErrInvalidLifetime, amount, unit)
	}

	issued := issuedAt.UTC().Truncate(time.Second)
	return issued, issued.Add(time.Duration(amount) * unit.Duration()), nil
}

// Window is shorthand for Window(issuedAt, l.Amount, l.Unit).
func (l Lifetime) Window(issuedAt time.Time) (time.Time, time.Time, error) {
	return Window(issuedAt, l.Amount, l.Unit)
}
