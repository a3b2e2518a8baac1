package main

import (
	"bytes"
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/ripen/internal/app"
	"github.com/conorfennell/ripen/internal/config"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String()
}

func writeCards(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "cards.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportThenStatus(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "ripen.db")
	cards := writeCards(t, dir, "Q: one\nA: 1\n---\nQ: two\nA: 2\n")

	out := execute(t, "--database", db, "import", cards)
	assert.Contains(t, out, "Found 2 cards: 2 added")

	out = execute(t, "--database", db, "status")
	assert.Contains(t, out, "2 cards, 0 due")
	// a moment has passed since the import
	assert.Contains(t, out, "Next review in 13h59m0s")
}

func TestSourceCommands(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "ripen.db")
	deck := filepath.Join(dir, "deck")
	require.NoError(t, os.MkdirAll(deck, 0o755))
	writeCards(t, deck, "Q: one\nA: 1\n")

	out := execute(t, "--database", db, "source", "add", deck)
	assert.Contains(t, out, "Added local source 1")

	out = execute(t, "--database", db, "--repos-dir", filepath.Join(dir, "repos"), "sync")
	assert.Contains(t, out, "1 added")

	out = execute(t, "--database", db, "source", "list")
	assert.Contains(t, out, deck)

	execute(t, "--database", db, "source", "remove", "1")
	out = execute(t, "--database", db, "source", "list")
	assert.Empty(t, out)
}

func TestFlatExport(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "ripen.db")
	execute(t, "--database", db, "import", writeCards(t, dir, "Q: one\nA: 1\n"))

	flat := filepath.Join(dir, "cards.txt")
	execute(t, "--database", db, "flat", "export", flat)
	data, err := os.ReadFile(flat)
	require.NoError(t, err)
	assert.Equal(t, "\"one\"\t\"1\"\n", string(data))

	out := execute(t, "--database", filepath.Join(dir, "other.db"), "flat", "import", flat)
	assert.Contains(t, out, "Loaded 1 cards")
}

func TestRunReview(t *testing.T) {
	dir := t.TempDir()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--database", filepath.Join(dir, "ripen.db")}))
	cfg, err := config.Load(fs)
	require.NoError(t, err)

	now := time.Date(2024, 2, 1, 7, 0, 0, 0, time.UTC)
	open := func() *app.App {
		a, err := app.Open(context.Background(), cfg, nil,
			app.WithClock(func() time.Time { return now }),
			app.WithRand(rand.New(rand.NewPCG(3, 4))),
		)
		require.NoError(t, err)
		return a
	}

	a := open()
	_, err = a.Import(context.Background(), writeCards(t, dir, "Q: one\nA: 1\n---\nQ: two\nA: 2\n"))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runReview(context.Background(), a, strings.NewReader(""), &out))
	assert.Contains(t, out.String(), "Everything reviewed")
	require.NoError(t, a.Close())

	now = now.Add(15 * time.Hour)
	a = open()
	defer a.Close()
	out.Reset()
	// an unknown reply is asked again
	in := strings.NewReader("\nmaybe\ny\n\nn\n")
	require.NoError(t, runReview(context.Background(), a, in, &out))

	assert.Contains(t, out.String(), "[2 left]")
	assert.Contains(t, out.String(), "[1 left]")
	assert.Contains(t, out.String(), "Session summary")
	assert.Regexp(t, `Total\s+2 reviewed,\s+1 correct`, out.String())
	assert.Equal(t, 1, a.Status().ReviewingPoints)
}

func TestRunReviewQuit(t *testing.T) {
	dir := t.TempDir()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--database", filepath.Join(dir, "ripen.db")}))
	cfg, err := config.Load(fs)
	require.NoError(t, err)

	now := time.Date(2024, 2, 1, 7, 0, 0, 0, time.UTC)
	a, err := app.Open(context.Background(), cfg, nil, app.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	_, err = a.Import(context.Background(), writeCards(t, dir, "Q: one\nA: 1\n"))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	now = now.Add(15 * time.Hour)
	a, err = app.Open(context.Background(), cfg, nil, app.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	defer a.Close()

	var out bytes.Buffer
	require.NoError(t, runReview(context.Background(), a, strings.NewReader("\nq\n"), &out))
	assert.NotContains(t, out.String(), "Session summary")
	assert.Equal(t, 0, a.Entries.Get("one").ReviewCount())
}
