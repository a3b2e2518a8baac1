package review

import (
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/ripen/internal/domain"
)

// Tally counts the answers in one group.
type Tally struct {
	Total     int
	Correct   int
	Incorrect int
}

func (t *Tally) add(r domain.ReviewResult) {
	t.Total++
	if r == domain.Success {
		t.Correct++
	} else {
		t.Incorrect++
	}
}

// PercentageCorrect is 0 for an empty tally.
func (t Tally) PercentageCorrect() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Correct) * 100 / float64(t.Total)
}

// Summary groups the answers given during a session by what happened to the entry
// the time before. Only answers given in the session count, however the clock moved.
type Summary struct {
	SessionID uuid.UUID
	Started   time.Time
	Ended     time.Time

	Total               Tally
	New                 Tally
	PreviouslySucceeded Tally
	PreviouslyFailed    Tally
}

// record files one answer under what happened at the entry's review before it.
func (s *Summary) record(previous domain.Review, reviewed bool, result domain.ReviewResult) {
	s.Total.add(result)
	switch {
	case !reviewed:
		s.New.add(result)
	case previous.Result == domain.Success:
		s.PreviouslySucceeded.add(result)
	default:
		s.PreviouslyFailed.add(result)
	}
}
