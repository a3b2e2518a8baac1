package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/conorfennell/ripen/internal/domain"
)

var ErrInvalidSettings = errors.New("invalid study settings")

const (
	DefaultSessionSize            = 20
	DefaultIdealSuccessPercentage = 85.0
	DefaultPriority               = domain.MaxPriority
)

// Settings are the per-collection study options.
type Settings struct {
	Intervals IntervalSettings
	// SessionSize is the maximum number of entries in one review round; 0 is unbounded.
	SessionSize int
	// IdealSuccessPercentage is the success rate the analyzer steers towards.
	IdealSuccessPercentage float64
	DefaultPriority        int
}

// DefaultSettings returns the settings a fresh collection starts with.
func DefaultSettings() Settings {
	return Settings{
		Intervals:              DefaultIntervalSettings(),
		SessionSize:            DefaultSessionSize,
		IdealSuccessPercentage: DefaultIdealSuccessPercentage,
		DefaultPriority:        DefaultPriority,
	}
}

func (s Settings) Validate() error {
	if err := s.Intervals.Validate(); err != nil {
		return err
	}
	if s.SessionSize < 0 {
		return fmt.Errorf("%w: session size must not be negative", ErrInvalidSettings)
	}
	if !(s.IdealSuccessPercentage > 0 && s.IdealSuccessPercentage <= 100) {
		return fmt.Errorf("%w: ideal success percentage %v not in (0, 100]", ErrInvalidSettings, s.IdealSuccessPercentage)
	}
	if err := domain.ValidatePriority(s.DefaultPriority); err != nil {
		return fmt.Errorf("%w: default %w", ErrInvalidSettings, err)
	}
	return nil
}

func (s Settings) Equal(o Settings) bool {
	return s.Intervals.Equal(o.Intervals) &&
		s.SessionSize == o.SessionSize &&
		domain.FloatsEqualWithinThousandths(s.IdealSuccessPercentage, o.IdealSuccessPercentage) &&
		s.DefaultPriority == o.DefaultPriority
}

const (
	labelSeparator = ": "
	noValue        = "none"

	initialIntervalLabel        = "initial interval"
	rememberedIntervalLabel     = "remembered interval"
	forgottenIntervalLabel      = "forgotten interval"
	lengtheningFactorLabel      = "lengthening factor"
	maximumIntervalLabel        = "maximum interval"
	sessionSizeLabel            = "session size"
	idealSuccessPercentageLabel = "ideal success percentage"
	defaultPriorityLabel        = "default priority"
)

// Property is one labelled setting in its persisted text form.
type Property struct {
	Label string
	Value string
}

// Properties lists the settings as label/value pairs in a stable order.
func (s Settings) Properties() []Property {
	maximum := noValue
	if s.Intervals.MaximumInterval.Duration() > 0 {
		maximum = s.Intervals.MaximumInterval.String()
	}
	sessionSize := noValue
	if s.SessionSize > 0 {
		sessionSize = strconv.Itoa(s.SessionSize)
	}
	return []Property{
		{initialIntervalLabel, s.Intervals.Initial.String()},
		{rememberedIntervalLabel, s.Intervals.Remembered.String()},
		{forgottenIntervalLabel, s.Intervals.Forgotten.String()},
		{lengtheningFactorLabel, formatFloat(s.Intervals.LengtheningFactor)},
		{maximumIntervalLabel, maximum},
		{sessionSizeLabel, sessionSize},
		{idealSuccessPercentageLabel, formatFloat(s.IdealSuccessPercentage)},
		{defaultPriorityLabel, strconv.Itoa(s.DefaultPriority)},
	}
}

// String renders the settings as "label: value" lines.
func (s Settings) String() string {
	var b strings.Builder
	for _, p := range s.Properties() {
		b.WriteString(p.Label + labelSeparator + p.Value + "\n")
	}
	return b.String()
}

// ParseLines applies every "label: value" line it recognizes. Lines without a known
// label are skipped, so the matching settings keep their current value. A known
// label with an unreadable value is an error.
func (s *Settings) ParseLines(lines []string) error {
	for _, line := range lines {
		if err := s.parseLine(line); err != nil {
			return err
		}
	}
	return nil
}

func (s *Settings) parseLine(line string) error {
	label, value, ok := strings.Cut(line, labelSeparator)
	if !ok {
		return nil
	}
	value = strings.TrimSpace(value)

	var err error
	switch strings.TrimSpace(label) {
	case initialIntervalLabel:
		s.Intervals.Initial, err = domain.ParseTimeInterval(value)
	case rememberedIntervalLabel:
		s.Intervals.Remembered, err = domain.ParseTimeInterval(value)
	case forgottenIntervalLabel:
		s.Intervals.Forgotten, err = domain.ParseTimeInterval(value)
	case lengtheningFactorLabel:
		s.Intervals.LengtheningFactor, err = strconv.ParseFloat(value, 64)
	case maximumIntervalLabel:
		s.Intervals.MaximumInterval = domain.TimeInterval{}
		if value != noValue {
			s.Intervals.MaximumInterval, err = domain.ParseTimeInterval(value)
		}
	case sessionSizeLabel:
		// anything that is not a number means "no limit"
		s.SessionSize, _ = strconv.Atoi(value)
	case idealSuccessPercentageLabel:
		s.IdealSuccessPercentage, err = strconv.ParseFloat(value, 64)
	case defaultPriorityLabel:
		s.DefaultPriority, err = strconv.Atoi(value)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("setting %q: %w", label, err)
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
