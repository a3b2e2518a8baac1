package domain

import (
	"errors"
	"fmt"
)

const (
	MinPriority = 1
	MaxPriority = 10
)

var ErrInvalidPriority = fmt.Errorf("priority must be between %d and %d", MinPriority, MaxPriority)

var ErrEmptyQuestion = errors.New("question must not be empty")

// Card is a question/answer pair that has not been registered in a collection yet.
// A zero Priority means "use the collection default".
type Card struct {
	Question string
	Answer   string
	Priority int
}

// ValidatePriority checks that p is within [MinPriority, MaxPriority].
func ValidatePriority(p int) error {
	if p < MinPriority || p > MaxPriority {
		return fmt.Errorf("%w: got %d", ErrInvalidPriority, p)
	}
	return nil
}
