package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/conorfennell/ripen/internal/app"
	"github.com/conorfennell/ripen/internal/domain"
	"github.com/conorfennell/ripen/internal/review"
)

// runReview shows the due cards one at a time until the session ends or the user
// quits. Every answer is saved as it is given.
func runReview(ctx context.Context, a *app.App, in io.Reader, out io.Writer) error {
	a.Reviews.ContinueSession()
	if a.Reviews.Current() == nil {
		printStatus(out, a.Status())
		return nil
	}

	scanner := bufio.NewScanner(in)
	for e := a.Reviews.Current(); e != nil; e = a.Reviews.Current() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintf(out, "\n[%d left] %s\n", a.Reviews.Remaining(), e.Question())
		fmt.Fprint(out, "Press Enter to see the answer...")
		if !scanner.Scan() {
			return scanner.Err()
		}
		fmt.Fprintln(out, e.Answer())

		result, quit, err := ask(scanner, out)
		if err != nil || quit {
			return err
		}
		if err := a.Answer(ctx, result); err != nil {
			return err
		}
	}

	if s, ok := a.Reviews.Summary(); ok {
		printSummary(out, s)
	}
	return nil
}

func ask(scanner *bufio.Scanner, out io.Writer) (result domain.ReviewResult, quit bool, err error) {
	for {
		fmt.Fprint(out, "Remembered? [y/n/q] ")
		if !scanner.Scan() {
			return 0, true, scanner.Err()
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "y", "yes":
			return domain.Success, false, nil
		case "n", "no":
			return domain.Failure, false, nil
		case "q", "quit":
			return 0, true, nil
		}
	}
}

func printStatus(out io.Writer, st app.Status) {
	fmt.Fprintf(out, "%d cards, %d due, %d reviewing points.\n", st.Entries, st.Due, st.ReviewingPoints)
	switch {
	case st.Due > 0:
	case st.HasNextReview:
		fmt.Fprintf(out, "Everything reviewed. Next review in %s.\n", st.NextReview.Truncate(time.Minute))
	default:
		fmt.Fprintln(out, "The collection is empty.")
	}
}

func printSummary(out io.Writer, s review.Summary) {
	fmt.Fprintln(out, "\nSession summary")
	rows := []struct {
		name  string
		tally review.Tally
	}{
		{"Total", s.Total},
		{"New cards", s.New},
		{"Previously succeeded", s.PreviouslySucceeded},
		{"Previously failed", s.PreviouslyFailed},
	}
	for _, r := range rows {
		fmt.Fprintf(out, "%-22s %4d reviewed, %4d correct, %4d incorrect, %5.1f%%\n",
			r.name, r.tally.Total, r.tally.Correct, r.tally.Incorrect, r.tally.PercentageCorrect())
	}
}
