package flatfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/ripen/internal/domain"
	"github.com/conorfennell/ripen/internal/entries"
	"github.com/conorfennell/ripen/internal/knol"
	"github.com/conorfennell/ripen/internal/schedule"
)

var ErrMalformedLine = errors.New("malformed line")

const maxLineSize = 1 << 20

// Paths returns the repetitions and settings file names that belong to an entries
// file: cards.txt has cards_reps.txt and cards_settings.txt.
func Paths(entriesPath string) (reps, settings string) {
	base := strings.TrimSuffix(entriesPath, ".txt")
	return base + "_reps.txt", base + "_settings.txt"
}

// Collection is the content of one set of flat files.
type Collection struct {
	Records  []entries.Record
	Settings schedule.Settings
}

// Read loads the entries file at path plus, when present, its repetitions and settings
// files. Settings start from defaults.
func Read(path string, defaults schedule.Settings) (*Collection, error) {
	c := &Collection{Settings: defaults}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if c.Records, err = ReadEntries(f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	repsPath, settingsPath := Paths(path)
	if rf, err := os.Open(repsPath); err == nil {
		defer rf.Close()
		if err := ApplyRepetitions(c.Records, rf); err != nil {
			return nil, fmt.Errorf("read %s: %w", repsPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if sf, err := os.Open(settingsPath); err == nil {
		defer sf.Close()
		lines, err := readLines(sf)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", settingsPath, err)
		}
		if err := c.Settings.ParseLines(lines); err != nil {
			return nil, fmt.Errorf("read %s: %w", settingsPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return c, nil
}

// Write stores records and settings as the three files for path.
func Write(path string, records []entries.Record, settings schedule.Settings) error {
	repsPath, settingsPath := Paths(path)
	writers := []struct {
		path  string
		write func(io.Writer) error
	}{
		{path, func(w io.Writer) error { return WriteEntries(w, records) }},
		{repsPath, func(w io.Writer) error { return WriteRepetitions(w, records) }},
		{settingsPath, func(w io.Writer) error {
			_, err := io.WriteString(w, settings.String())
			return err
		}},
	}
	for _, fw := range writers {
		if err := writeFile(fw.path, fw.write); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// ReadEntries parses "question<TAB>answer" lines. The records carry no metadata yet.
func ReadEntries(r io.Reader) ([]entries.Record, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}
	var records []entries.Record
	for i, line := range lines {
		if line == "" {
			continue
		}
		rawQ, rawA, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("%w %d: no tab between question and answer", ErrMalformedLine, i+1)
		}
		q, err := DecodeText(rawQ)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		a, err := DecodeText(rawA)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		records = append(records, entries.Record{Question: q, Answer: a})
	}
	return records, nil
}

// WriteEntries is the inverse of ReadEntries.
func WriteEntries(w io.Writer, records []entries.Record) error {
	for _, rec := range records {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", EncodeText(rec.Question), EncodeText(rec.Answer)); err != nil {
			return err
		}
	}
	return nil
}

// ApplyRepetitions reads "question<TAB>created<TAB>priority[<TAB>instant<TAB>S|F]..."
// lines and attaches them to the records with the same normalized question. Lines
// for unknown questions are ignored. An odd number of review fields is fatal.
func ApplyRepetitions(records []entries.Record, r io.Reader) error {
	index := make(map[string]int, len(records))
	for i, rec := range records {
		index[knol.Normalize(rec.Question)] = i
	}

	lines, err := readLines(r)
	if err != nil {
		return err
	}
	for n, line := range lines {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return fmt.Errorf("%w %d: want question, creation instant and priority", ErrMalformedLine, n+1)
		}
		i, ok := index[knol.Normalize(fields[0])]
		if !ok {
			continue
		}
		created, err := time.Parse(time.RFC3339Nano, fields[1])
		if err != nil {
			return fmt.Errorf("line %d: creation instant: %w", n+1, err)
		}
		priority, err := strconv.Atoi(fields[2])
		if err != nil {
			return fmt.Errorf("line %d: priority: %w", n+1, err)
		}
		reviews, err := domain.ReviewsFromFields(fields[3:])
		if err != nil {
			return fmt.Errorf("line %d: %w", n+1, err)
		}
		records[i].Created = created
		records[i].Priority = priority
		records[i].Reviews = reviews
	}
	return nil
}

// WriteRepetitions is the inverse of ApplyRepetitions.
func WriteRepetitions(w io.Writer, records []entries.Record) error {
	for _, rec := range records {
		fields := []string{
			knol.Normalize(rec.Question),
			rec.Created.UTC().Format(time.RFC3339Nano),
			strconv.Itoa(rec.Priority),
		}
		fields = append(fields, domain.ReviewFields(rec.Reviews)...)
		if _, err := io.WriteString(w, strings.Join(fields, "\t")+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, strings.TrimSuffix(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
