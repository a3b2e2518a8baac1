package gitsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func TestLocalPath(t *testing.T) {
	testCases := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{name: "https", url: "https://github.com/acme/cards.git", want: filepath.Join("repos", "github.com", "acme", "cards")},
		{name: "scp-like ssh", url: "git@github.com:acme/cards.git", want: filepath.Join("repos", "github.com", "acme", "cards")},
		{name: "garbage", url: "not a url", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LocalPath("repos", tc.url)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Expected an error for %q", tc.url)
				}
				return
			}
			if err != nil {
				t.Fatalf("LocalPath() returned an unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIsURL(t *testing.T) {
	for path, want := range map[string]bool{
		"https://github.com/acme/cards.git": true,
		"git@github.com:acme/cards.git":     true,
		"/home/me/cards":                    false,
		"notes":                             false,
	} {
		if got := IsURL(path); got != want {
			t.Errorf("IsURL(%q) = %v, want %v", path, got, want)
		}
	}
}

// TestSyncClonesThenPulls uses a repository on disk as the remote.
func TestSyncClonesThenPulls(t *testing.T) {
	remoteDir := t.TempDir()
	remote, err := git.PlainInit(remoteDir, false)
	if err != nil {
		t.Fatal(err)
	}
	commitFile(t, remote, remoteDir, "cards.md", "Q: one\nA: 1\n")

	localDir := filepath.Join(t.TempDir(), "clone")
	ctx := context.Background()
	if err := Sync(ctx, remoteDir, localDir, nil); err != nil {
		t.Fatalf("clone failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(localDir, "cards.md")); err != nil {
		t.Fatalf("cloned file missing: %v", err)
	}

	// nothing new: still succeeds
	if err := Sync(ctx, remoteDir, localDir, nil); err != nil {
		t.Fatalf("pull failed: %v", err)
	}

	commitFile(t, remote, remoteDir, "more.md", "Q: two\nA: 2\n")
	if err := Sync(ctx, remoteDir, localDir, nil); err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(localDir, "more.md")); err != nil {
		t.Fatalf("pulled file missing: %v", err)
	}
}

func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatal(err)
	}
	_, err = wt.Commit("add "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}
}
