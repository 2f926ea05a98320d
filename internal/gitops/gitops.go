// Package gitops keeps a project's history as git commits, one per change
// to the ledger.
package gitops

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Author identifies who a commit is recorded for.
type Author struct {
	Name  string
	Email string
}

func (a Author) String() string {
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// Available reports whether a git binary is on PATH.
func Available() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// Init initializes a new git repository at dir.
func Init(ctx context.Context, dir string) error {
	if _, err := git(ctx, dir, "init", "-q"); err != nil {
		return err
	}
	return nil
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Commit stages everything under dir and commits it as author. It returns
// the short hash, or "" and false when there was nothing to commit.
func Commit(ctx context.Context, dir, message string, author Author) (string, bool, error) {
	if _, err := git(ctx, dir, "add", "-A"); err != nil {
		return "", false, err
	}

	status, err := git(ctx, dir, "status", "--porcelain")
	if err != nil {
		return "", false, err
	}
	if len(bytes.TrimSpace(status)) == 0 {
		return "", false, nil
	}

	// The committer identity is set inline so commits work without a
	// global git config.
	if _, err := git(ctx, dir,
		"-c", "user.name="+author.Name,
		"-c", "user.email="+author.Email,
		"commit", "-q", "-m", message, "--author", author.String(),
	); err != nil {
		return "", false, err
	}

	out, err := git(ctx, dir, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", false, err
	}
	return strings.TrimSpace(string(out)), true, nil
}

func git(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("git %s: %s: %w", args[0], strings.TrimSpace(string(out)), err)
	}
	return out, nil
}
