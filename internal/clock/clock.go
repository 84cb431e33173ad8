// internal/clock/clock.go
//
// Tenant timezone resolution.
//
// Context
// -------
// Every restaurant stores either an IANA zone name ("Europe/Berlin") or a
// fixed UTC offset.  The reset scheduler asks one question of this package:
// what is the local wall-clock date and hour for this tenant at instant T?
// DST and half-hour offsets come from the Go zone database; nothing here
// does calendar arithmetic by hand.
//
// Accepted zone names
// -------------------
//   - IANA names, resolved with time.LoadLocation.
//   - "UTC", "GMT", and the empty string.
//   - Fixed offsets: "+05:30", "-0330", "UTC+5", "GMT-03:30".
//
// A name that matches none of these fails with ErrUnknownTimezone.  Callers
// are expected to log and fall back to UTC (see LocationOrUTC).
//
// Notes
// -----
// • The zone database is embedded via time/tzdata so hosts without
//   /usr/share/zoneinfo behave the same as dev machines.
// • Oxford commas, two spaces after periods.
package clock

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/yanizio/availability/internal/cache"
)

// ErrUnknownTimezone is returned when a zone name cannot be resolved.
var ErrUnknownTimezone = errors.New("unknown timezone")

// maxOffsetMinutes bounds fixed offsets to the real-world range (UTC-12 to
// UTC+14).
const maxOffsetMinutes = 14 * 60

var offsetPattern = regexp.MustCompile(`^(?:UTC|GMT)?([+-])(\d{1,2})(?::?(\d{2}))?$`)

// Zone identifies a tenant's configured timezone.  Name wins when it is
// set; OffsetMinutes is the fixed-offset fallback representation.
type Zone struct {
	Name          string
	OffsetMinutes *int
}

// String renders the zone for logs.
func (z Zone) String() string {
	if z.Name != "" || z.OffsetMinutes == nil {
		return z.Name
	}
	return fixedName(*z.OffsetMinutes)
}

func (z Zone) key() string {
	if z.Name != "" || z.OffsetMinutes == nil {
		return "n:" + strings.TrimSpace(z.Name)
	}
	return "o:" + strconv.Itoa(*z.OffsetMinutes)
}

// Date is a calendar date with no time-of-day or zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// WallClock is the local date and time-of-day for a tenant.
type WallClock struct {
	Date   Date
	Hour   int
	Minute int
}

// Resolver turns Zones into *time.Location values.  Parsed locations are
// kept in a small LRU because the scheduler resolves the same few hundred
// zones on every tick.  Safe for concurrent use.
type Resolver struct {
	locs *cache.LRU[string, *time.Location]
}

// NewResolver returns a Resolver caching up to size locations.
func NewResolver(size int) *Resolver {
	if size < 1 {
		size = 1
	}
	return &Resolver{locs: cache.New[string, *time.Location](size)}
}

var defaultResolver = NewResolver(512)

// Location resolves z.  Unrecognised names wrap ErrUnknownTimezone.
func (r *Resolver) Location(z Zone) (*time.Location, error) {
	k := z.key()
	if loc, ok := r.locs.Get(k); ok {
		return loc, nil
	}

	loc, err := resolve(z)
	if err != nil {
		return nil, err
	}
	r.locs.Add(k, loc)
	return loc, nil
}

// LocationOrUTC resolves z and degrades to UTC on failure.  The error is
// still returned so the caller can log it; the location is never nil.
func (r *Resolver) LocationOrUTC(z Zone) (*time.Location, error) {
	loc, err := r.Location(z)
	if err != nil {
		return time.UTC, err
	}
	return loc, nil
}

// LocalWallClock converts instant to the tenant's local date, hour, and
// minute.
func (r *Resolver) LocalWallClock(instant time.Time, z Zone) (WallClock, error) {
	loc, err := r.Location(z)
	if err != nil {
		return WallClock{}, err
	}
	return WallClockIn(instant, loc), nil
}

// LocalWallClock resolves z with the package-level resolver.
func LocalWallClock(instant time.Time, z Zone) (WallClock, error) {
	return defaultResolver.LocalWallClock(instant, z)
}

// WallClockIn converts instant using an already resolved location.
func WallClockIn(instant time.Time, loc *time.Location) WallClock {
	local := instant.In(loc)
	return WallClock{
		Date:   DateOf(local),
		Hour:   local.Hour(),
		Minute: local.Minute(),
	}
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func resolve(z Zone) (*time.Location, error) {
	name := strings.TrimSpace(z.Name)

	if name == "" {
		if z.OffsetMinutes == nil {
			return time.UTC, nil
		}
		return fixedZone(*z.OffsetMinutes)
	}

	switch strings.ToUpper(name) {
	case "UTC", "GMT", "Z":
		return time.UTC, nil
	case "LOCAL":
		// Host-dependent; never meaningful for a tenant.
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
	}

	if m := offsetPattern.FindStringSubmatch(strings.ToUpper(name)); m != nil {
		mins, err := parseOffset(m[1], m[2], m[3])
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
		}
		return fixedZone(mins)
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
	}
	return loc, nil
}

func parseOffset(sign, hh, mm string) (int, error) {
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, err
	}
	m := 0
	if mm != "" {
		if m, err = strconv.Atoi(mm); err != nil {
			return 0, err
		}
	}
	if m >= 60 {
		return 0, fmt.Errorf("minutes out of range: %d", m)
	}
	total := h*60 + m
	if sign == "-" {
		total = -total
	}
	return total, nil
}

func fixedZone(offsetMinutes int) (*time.Location, error) {
	if offsetMinutes < -maxOffsetMinutes || offsetMinutes > maxOffsetMinutes {
		return nil, fmt.Errorf("%w: offset %d minutes", ErrUnknownTimezone, offsetMinutes)
	}
	if offsetMinutes == 0 {
		return time.UTC, nil
	}
	return time.FixedZone(fixedName(offsetMinutes), offsetMinutes*60), nil
}

func fixedName(offsetMinutes int) string {
	sign := '+'
	if offsetMinutes < 0 {
		sign = '-'
		offsetMinutes = -offsetMinutes
	}
	return fmt.Sprintf("UTC%c%02d:%02d", sign, offsetMinutes/60, offsetMinutes%60)
}
