package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/conorfennell/ripen/internal/domain"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	priorityPrefix = "P:"
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
	readingPriority
)

// ParseFile reads a file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all cards. A card with an unusable P:
// line is still returned, with the default priority, and the problem is reported in
// the returned error alongside the cards.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	var cards []domain.Card
	var currentCard domain.Card
	var currentBlock []string
	var lineErrors []error
	currentState := seeking
	lineNo := 0

	flushBlock := func() {
		if len(currentBlock) == 0 {
			return
		}
		content := strings.Join(currentBlock, "\n")
		switch currentState {
		case readingQuestion:
			currentCard.Question = content
		case readingAnswer:
			currentCard.Answer = content
		}
		currentBlock = nil
	}

	finishCard := func() {
		flushBlock()
		if currentCard.Question != "" {
			cards = append(cards, currentCard)
		}
		currentCard = domain.Card{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()
		lineNo++

		if line == "---" {
			finishCard()
			continue
		}

		switch {
		case strings.HasPrefix(line, questionPrefix):
			flushBlock()
			if currentState != seeking { // A new question always starts a new card
				finishCard()
			}
			currentState = readingQuestion
			currentBlock = append(currentBlock, content(line, questionPrefix))
		case strings.HasPrefix(line, answerPrefix):
			flushBlock()
			currentState = readingAnswer
			currentBlock = append(currentBlock, content(line, answerPrefix))
		case strings.HasPrefix(line, priorityPrefix):
			flushBlock()
			currentState = readingPriority
			p, err := parsePriority(content(line, priorityPrefix))
			if err != nil {
				lineErrors = append(lineErrors, fmt.Errorf("line %d: %w", lineNo, err))
				continue
			}
			currentCard.Priority = p
		case currentState == readingQuestion || currentState == readingAnswer:
			currentBlock = append(currentBlock, line)
		}
	}

	finishCard() // Finish the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, errors.Join(lineErrors...)
}

func content(line, prefix string) string {
	return strings.TrimPrefix(line[len(prefix):], " ")
}

func parsePriority(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidPriority, s)
	}
	if err := domain.ValidatePriority(p); err != nil {
		return 0, err
	}
	return p, nil
}
