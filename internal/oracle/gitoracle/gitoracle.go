// Package gitoracle adapts a real Git checkout to the [oracle.Oracle]
// interface by shelling out to the git binary, the same way
// internal/git's Repository type talks to git for git-spice.
package gitoracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/gitseq/sequencer/internal/oracle"
)

// Oracle implements [oracle.Oracle] against a Git repository on disk.
type Oracle struct {
	dir string // working directory to run git in
	git string // path to the git executable
}

var _ oracle.Oracle = (*Oracle)(nil)

// New returns an Oracle that operates on the repository rooted at dir.
func New(dir string) (*Oracle, error) {
	git, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("find git: %w", err)
	}
	return &Oracle{dir: dir, git: git}, nil
}

func (o *Oracle) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, o.git, args...)
	cmd.Dir = o.dir
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return strings.TrimSpace(out.String()), nil
}

// Resolve implements [oracle.Oracle].
func (o *Oracle) Resolve(ctx context.Context, ref string) (oracle.ID, error) {
	out, err := o.run(ctx, "rev-parse", "--verify", "--quiet", "--end-of-options", ref+"^{commit}")
	if err != nil {
		return "", oracle.ErrNotExist
	}
	return oracle.ID(out), nil
}

// Parents implements [oracle.Oracle].
func (o *Oracle) Parents(ctx context.Context, id oracle.ID) ([]oracle.ID, error) {
	out, err := o.run(ctx, "rev-list", "--parents", "--max-count=1", id.String())
	if err != nil {
		return nil, fmt.Errorf("parents of %v: %w", id, err)
	}
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return nil, fmt.Errorf("parents of %v: empty rev-list output", id)
	}
	parents := make([]oracle.ID, 0, len(fields)-1)
	for _, f := range fields[1:] {
		parents = append(parents, oracle.ID(f))
	}
	return parents, nil
}

// FirstParent implements [oracle.Oracle].
func (o *Oracle) FirstParent(ctx context.Context, id oracle.ID) (oracle.ID, bool, error) {
	parents, err := o.Parents(ctx, id)
	if err != nil {
		return "", false, err
	}
	if len(parents) == 0 {
		return "", false, nil
	}
	return parents[0], true, nil
}

// Tree implements [oracle.Oracle].
func (o *Oracle) Tree(ctx context.Context, id oracle.ID) (oracle.ID, error) {
	out, err := o.run(ctx, "rev-parse", "--verify", "--quiet", id.String()+"^{tree}")
	if err != nil {
		return "", fmt.Errorf("tree of %v: %w", id, err)
	}
	return oracle.ID(out), nil
}

// Message implements [oracle.Oracle].
func (o *Oracle) Message(ctx context.Context, id oracle.ID) (string, error) {
	out, err := o.run(ctx, "log", "-1", "--format=%B", id.String())
	if err != nil {
		return "", fmt.Errorf("message of %v: %w", id, err)
	}
	return out, nil
}

// Subject implements [oracle.Oracle].
func (o *Oracle) Subject(ctx context.Context, id oracle.ID) (string, error) {
	out, err := o.run(ctx, "log", "-1", "--format=%s", id.String())
	if err != nil {
		return "", fmt.Errorf("subject of %v: %w", id, err)
	}
	return out, nil
}

// CommitAuthor implements [oracle.Oracle].
func (o *Oracle) CommitAuthor(ctx context.Context, id oracle.ID) (oracle.Author, error) {
	out, err := o.run(ctx, "log", "-1", "--format=%an%x00%ae%x00%ad", "--date=raw", id.String())
	if err != nil {
		return oracle.Author{}, fmt.Errorf("author of %v: %w", id, err)
	}
	parts := strings.SplitN(out, "\x00", 3)
	if len(parts) != 3 {
		return oracle.Author{}, fmt.Errorf("author of %v: malformed output", id)
	}
	return oracle.Author{Name: parts[0], Email: parts[1], Date: parts[2]}, nil
}

// Short implements [oracle.Oracle].
func (o *Oracle) Short(ctx context.Context, id oracle.ID) (string, error) {
	out, err := o.run(ctx, "rev-parse", "--short", id.String())
	if err != nil {
		return "", fmt.Errorf("short id of %v: %w", id, err)
	}
	return out, nil
}

// Exists implements [oracle.Oracle].
func (o *Oracle) Exists(ctx context.Context, id oracle.ID) bool {
	_, err := o.run(ctx, "cat-file", "-e", id.String())
	return err == nil
}

// IsAncestor implements [oracle.Oracle].
func (o *Oracle) IsAncestor(ctx context.Context, a, b oracle.ID) bool {
	_, err := o.run(ctx, "merge-base", "--is-ancestor", a.String(), b.String())
	return err == nil
}

// PatchID implements [oracle.Oracle].
func (o *Oracle) PatchID(ctx context.Context, id oracle.ID) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c",
		fmt.Sprintf("%s diff-tree -p %s | %s patch-id --stable", o.git, id.String(), o.git))
	cmd.Dir = o.dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("patch-id of %v: %w", id, err)
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return "", errors.New("empty patch-id output")
	}
	return fields[0], nil
}

// MergeBase implements [oracle.Oracle].
func (o *Oracle) MergeBase(ctx context.Context, a, b oracle.ID) (oracle.ID, error) {
	out, err := o.run(ctx, "merge-base", a.String(), b.String())
	if err != nil {
		return "", fmt.Errorf("merge-base %v %v: %w", a, b, err)
	}
	return oracle.ID(out), nil
}
