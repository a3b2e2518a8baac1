package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNegativeInterval = errors.New("negative time intervals are not permitted")
	ErrUnknownTimeUnit  = errors.New("unknown time unit")
)

// TimeUnit is a unit a user can express review intervals in.
type TimeUnit int

const (
	Second TimeUnit = iota
	Minute
	Hour
	Day
	Week
	Month
	Year
)

var timeUnits = [...]struct {
	name     string
	duration time.Duration
}{
	Second: {"second(s)", time.Second},
	Minute: {"minute(s)", time.Minute},
	Hour:   {"hour(s)", time.Hour},
	Day:    {"day(s)", 24 * time.Hour},
	Week:   {"week(s)", 7 * 24 * time.Hour},
	Month:  {"month(s)", 43830 * time.Minute}, // 365.25 days / 12
	Year:   {"year(s)", 8766 * time.Hour},
}

// TimeUnits returns every unit, shortest first.
func TimeUnits() []TimeUnit {
	units := make([]TimeUnit, len(timeUnits))
	for i := range timeUnits {
		units[i] = TimeUnit(i)
	}
	return units
}

// String returns the display name of the unit, like "day(s)".
func (u TimeUnit) String() string {
	if u < 0 || int(u) >= len(timeUnits) {
		return fmt.Sprintf("TimeUnit(%d)", int(u))
	}
	return timeUnits[u].name
}

// Duration returns the length of one unit.
func (u TimeUnit) Duration() time.Duration {
	return timeUnits[u].duration
}

// ParseTimeUnit converts a display name such as "hour(s)" back into its unit.
func ParseTimeUnit(name string) (TimeUnit, error) {
	for i, u := range timeUnits {
		if u.name == name {
			return TimeUnit(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTimeUnit, name)
}

// TimeInterval is a quantity of time such as "3.5 hour(s)", kept as scalar and unit
// so that it displays the way the user entered it.
type TimeInterval struct {
	scalar float64
	unit   TimeUnit
}

// NewTimeInterval builds an interval. Negative scalars are rejected.
func NewTimeInterval(scalar float64, unit TimeUnit) (TimeInterval, error) {
	if scalar < 0 || math.IsNaN(scalar) {
		return TimeInterval{}, fmt.Errorf("%w: %v", ErrNegativeInterval, scalar)
	}
	if unit < 0 || int(unit) >= len(timeUnits) {
		return TimeInterval{}, fmt.Errorf("%w: %d", ErrUnknownTimeUnit, int(unit))
	}
	return TimeInterval{scalar: scalar, unit: unit}, nil
}

// MustTimeInterval is like NewTimeInterval but panics on invalid input.
// It is meant for package-level defaults.
func MustTimeInterval(scalar float64, unit TimeUnit) TimeInterval {
	ti, err := NewTimeInterval(scalar, unit)
	if err != nil {
		panic(err)
	}
	return ti
}

// ParseTimeInterval parses "<scalar> <unit name>", e.g. "14 hour(s)".
func ParseTimeInterval(s string) (TimeInterval, error) {
	scalarStr, unitStr, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok {
		return TimeInterval{}, fmt.Errorf("parse time interval %q: missing unit", s)
	}
	scalar, err := strconv.ParseFloat(scalarStr, 64)
	if err != nil {
		return TimeInterval{}, fmt.Errorf("parse time interval %q: %w", s, err)
	}
	unit, err := ParseTimeUnit(strings.TrimSpace(unitStr))
	if err != nil {
		return TimeInterval{}, fmt.Errorf("parse time interval %q: %w", s, err)
	}
	return NewTimeInterval(scalar, unit)
}

func (ti TimeInterval) Scalar() float64 { return ti.scalar }
func (ti TimeInterval) Unit() TimeUnit { return ti.unit }

// Duration converts the interval to an absolute duration.
func (ti TimeInterval) Duration() time.Duration {
	return MultiplyDuration(ti.unit.Duration(), ti.scalar)
}

// Equal reports whether both intervals use the same unit and their scalars agree
// to within a tenth of a percent, which absorbs text round-trip losses.
func (ti TimeInterval) Equal(other TimeInterval) bool {
	return ti.unit == other.unit && FloatsEqualWithinThousandths(ti.scalar, other.scalar)
}

func (ti TimeInterval) String() string {
	return strconv.FormatFloat(ti.scalar, 'f', -1, 64) + " " + ti.unit.String()
}

// MarshalText implements encoding.TextMarshaler.
func (ti TimeInterval) MarshalText() ([]byte, error) {
	return []byte(ti.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (ti *TimeInterval) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeInterval(string(text))
	if err != nil {
		return err
	}
	*ti = parsed
	return nil
}

// MultiplyDuration scales base by factor with a precision of two decimal places of
// the factor: the base is split into hundredths, then multiplied by round(factor*100).
// Results that do not fit in a time.Duration saturate at the largest duration.
func MultiplyDuration(base time.Duration, factor float64) time.Duration {
	hundredth := base / 100
	hundreds := math.Round(factor * 100)
	if hundredth == 0 || hundreds == 0 {
		return 0
	}
	if hundreds >= float64(math.MaxInt64)/math.Abs(float64(hundredth)) {
		return time.Duration(math.MaxInt64)
	}
	return hundredth * time.Duration(int64(hundreds))
}

// FloatsEqualWithinThousandths compares two floats with a relative tolerance of 0.1%.
// When one side is exactly zero the other must be within 0.001 of zero.
func FloatsEqualWithinThousandths(a, b float64) bool {
	const tolerance = 0.001
	switch {
	case a == b:
		return true
	case a == 0:
		return math.Abs(b) < tolerance
	case b == 0:
		return math.Abs(a) < tolerance
	}
	larger, smaller := a, b
	if math.Abs(b) > math.Abs(a) {
		larger, smaller = b, a
	}
	return math.Abs((larger-smaller)/smaller) < tolerance
}
