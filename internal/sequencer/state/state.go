// Package state persists the resumable state of an in-progress rebase as
// a directory of small files, the way git's own sequencer does: a todo
// file, a done log, message scratch files, an author script, label files,
// and the rewritten-commit bookkeeping lists. Between driver invocations
// the process holds nothing in memory; everything needed to resume lives
// under this directory.
package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/gitseq/sequencer/internal/must"
	"github.com/gitseq/sequencer/internal/oracle"
	"github.com/gitseq/sequencer/internal/sequencer/todo"
)

// ErrNotExist is returned by read accessors when the underlying file has
// not been written.
var ErrNotExist = errors.New("state: not set")

// ErrAlreadyExists is returned by Create when the state directory already
// exists -- the precondition failure for starting a rebase while one is
// already in progress.
var ErrAlreadyExists = errors.New("state: a rebase is already in progress")

const (
	todoFile             = "git-rebase-todo"
	backupFile           = "git-rebase-todo.backup"
	doneFile             = "done"
	msgFile              = "message"
	squashMsgFile        = "message-squash"
	fixupMsgFile         = "message-fixup"
	authorScriptFile     = "author-script"
	amendFile            = "amend"
	stoppedSHAFile       = "stopped-sha"
	rewrittenListFile    = "rewritten-list"
	rewrittenPendingFile = "rewritten-pending"
	origHeadFile         = "orig-head"
	ontoFile             = "onto"
	headNameFile         = "head-name"
	upstreamFile         = "upstream"
	optionsFile          = "options"
	interactiveFile      = "interactive"
	verboseFile          = "verbose"
	patchFile            = "patch"
	droppedFile          = "dropped"
	labelsDir            = "labels"
)

// Options records the flags a `start` invocation was given, so that later
// `continue`/`skip` invocations in the same run see the same behavior.
type Options struct {
	KeepEmpty         bool   `yaml:"keepEmpty"`
	AllowEmptyMessage bool   `yaml:"allowEmptyMessage"`
	Autosquash        bool   `yaml:"autosquash"`
	ForceRebase       bool   `yaml:"forceRebase"`
	Exec              string `yaml:"exec,omitempty"`
}

// Store persists sequencer state under a single directory, normally
// ".git/sequencer" or equivalent inside the enclosing driver's Git
// directory.
type Store struct {
	dir string
	log *log.Logger
}

// New returns a Store rooted at dir. dir need not exist yet; Create
// makes it.
func New(dir string, logger *log.Logger) *Store {
	must.NotBeBlankf(dir, "state directory is required")
	if logger == nil {
		logger = log.Default()
	}
	return &Store{dir: dir, log: logger}
}

// Dir reports the directory this Store persists to.
func (s *Store) Dir() string { return s.dir }

// AuthorScriptPath reports the path of the author-script file, read and
// written by the author package rather than by Store directly.
func (s *Store) AuthorScriptPath() string { return s.path(authorScriptFile) }

// MessagePath reports the path of the pending commit message scratch file,
// opened directly by an editor for reword and squash/fixup finalisation.
func (s *Store) MessagePath() string { return s.path(msgFile) }

// TodoPath reports the path of the current todo file, opened directly by
// an editor for `start --edit-todo` and `edit-todo`.
func (s *Store) TodoPath() string { return s.path(todoFile) }

// Exists reports whether a rebase is currently in progress.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.dir)
	return err == nil
}

// Create initializes a fresh state directory. Returns ErrAlreadyExists if
// one is already present.
func (s *Store) Create(ctx context.Context) error {
	if err := os.Mkdir(s.dir, 0o777); err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.Mkdir(filepath.Join(s.dir, labelsDir), 0o777); err != nil {
		return fmt.Errorf("create labels dir: %w", err)
	}
	s.log.Debug("created state directory", "dir", s.dir)
	return nil
}

// Remove deletes the entire state directory. Used by abort and by
// finalisation on successful completion.
func (s *Store) Remove() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("remove state dir: %w", err)
	}
	return nil
}

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

func (s *Store) readString(name string) (string, error) {
	b, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotExist
		}
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(b), nil
}

func (s *Store) writeString(name, val string) error {
	if err := os.WriteFile(s.path(name), []byte(val), 0o666); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// writeAtomic writes content to name via a temp file and rename, so a
// crash mid-write never leaves a half-written todo file behind.
func (s *Store) writeAtomic(name, content string) error {
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", name, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file for %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, s.path(name)); err != nil {
		return fmt.Errorf("rename temp file for %s: %w", name, err)
	}
	return nil
}

func (s *Store) remove(name string) error {
	if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// ReadTodo reads and parses the current todo program.
func (s *Store) ReadTodo() (todo.Program, error) {
	text, err := s.readString(todoFile)
	if err != nil {
		return nil, err
	}
	return todo.Parse(text)
}

// WriteTodo atomically persists prog as the current todo program.
func (s *Store) WriteTodo(prog todo.Program) error {
	return s.writeAtomic(todoFile, prog.String())
}

// Backup snapshots prog as the pre-edit todo, taken immediately before the
// first editor invocation.
func (s *Store) Backup(prog todo.Program) error {
	return s.writeString(backupFile, prog.String())
}

// ReadDone reads the prefix of the todo program already consumed.
func (s *Store) ReadDone() (todo.Program, error) {
	text, err := s.readString(doneFile)
	if errors.Is(err, ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return todo.Parse(text)
}

// AppendDone appends a single consumed line to the done log, preserving
// the verbatim textual form (including comments) for progress accounting.
func (s *Store) AppendDone(line todo.Line) error {
	f, err := os.OpenFile(s.path(doneFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		return fmt.Errorf("open done log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line.Format() + "\n"); err != nil {
		return fmt.Errorf("append done log: %w", err)
	}
	return nil
}

// Message returns the commit message to use on the next commit action.
func (s *Store) Message() (string, error) { return s.readString(msgFile) }

// SetMessage writes the commit message to use on the next commit action.
func (s *Store) SetMessage(msg string) error { return s.writeString(msgFile, msg) }

// ClearMessage removes the pending commit message.
func (s *Store) ClearMessage() error { return s.remove(msgFile) }

// SquashMessage returns the accumulating combined message for the current
// squash/fixup run.
func (s *Store) SquashMessage() (string, error) { return s.readString(squashMsgFile) }

// SetSquashMessage overwrites the accumulating squash message.
func (s *Store) SetSquashMessage(msg string) error { return s.writeString(squashMsgFile, msg) }

// ClearSquashMessage removes the squash message, at the end of a run.
func (s *Store) ClearSquashMessage() error { return s.remove(squashMsgFile) }

// FixupMessage returns the original pick's message, present exactly when
// the current run has only seen fixup opcodes so far.
func (s *Store) FixupMessage() (string, error) { return s.readString(fixupMsgFile) }

// SetFixupMessage records the original pick's message for a new run.
func (s *Store) SetFixupMessage(msg string) error { return s.writeString(fixupMsgFile, msg) }

// ClearFixupMessage removes the fixup message, once a squash joins the run
// or the run finalises.
func (s *Store) ClearFixupMessage() error { return s.remove(fixupMsgFile) }

// HasFixupMessage reports whether a fixup message is currently recorded.
func (s *Store) HasFixupMessage() (bool, error) {
	_, err := s.FixupMessage()
	if errors.Is(err, ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Amend returns the commit id recorded as HEAD at the moment of an
// edit/squash-failure pause.
func (s *Store) Amend() (oracle.ID, error) {
	text, err := s.readString(amendFile)
	if err != nil {
		return "", err
	}
	return oracle.ID(strings.TrimSpace(text)), nil
}

// SetAmend records id as the AmendMarker.
func (s *Store) SetAmend(id oracle.ID) error { return s.writeString(amendFile, id.String()) }

// ClearAmend removes the AmendMarker.
func (s *Store) ClearAmend() error { return s.remove(amendFile) }

// StoppedSHA returns the commit id the engine is currently paused on.
func (s *Store) StoppedSHA() (oracle.ID, error) {
	text, err := s.readString(stoppedSHAFile)
	if err != nil {
		return "", err
	}
	return oracle.ID(strings.TrimSpace(text)), nil
}

// SetStoppedSHA records the commit id the engine is pausing on.
func (s *Store) SetStoppedSHA(id oracle.ID) error {
	return s.writeString(stoppedSHAFile, id.String())
}

// ClearStoppedSHA removes the stopped-sha marker.
func (s *Store) ClearStoppedSHA() error { return s.remove(stoppedSHAFile) }

// RewrittenPair is one finalised old-to-new commit mapping.
type RewrittenPair struct {
	Old, New oracle.ID
}

// RewrittenPending returns the old commit ids whose rewrite is not yet
// finalised.
func (s *Store) RewrittenPending() ([]oracle.ID, error) {
	text, err := s.readString(rewrittenPendingFile)
	if errors.Is(err, ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return splitIDs(text), nil
}

// AppendRewrittenPending appends old to the pending list.
func (s *Store) AppendRewrittenPending(old oracle.ID) error {
	return s.appendLine(rewrittenPendingFile, old.String())
}

// ClearRewrittenPending empties the pending list, after it has been
// flushed to RewrittenList.
func (s *Store) ClearRewrittenPending() error { return s.remove(rewrittenPendingFile) }

// RewrittenList returns the finalised old-to-new commit mappings recorded
// so far, for the post-rewrite hook and for notes copying.
func (s *Store) RewrittenList() ([]RewrittenPair, error) {
	text, err := s.readString(rewrittenListFile)
	if errors.Is(err, ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var pairs []RewrittenPair
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed rewritten-list line %q", line)
		}
		pairs = append(pairs, RewrittenPair{Old: oracle.ID(fields[0]), New: oracle.ID(fields[1])})
	}
	return pairs, nil
}

// AppendRewrittenList appends a finalised old-to-new mapping.
func (s *Store) AppendRewrittenList(old, newID oracle.ID) error {
	return s.appendLine(rewrittenListFile, old.String()+" "+newID.String())
}

func (s *Store) appendLine(name, line string) error {
	f, err := os.OpenFile(s.path(name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("append %s: %w", name, err)
	}
	return nil
}

func splitIDs(text string) []oracle.ID {
	var ids []oracle.ID
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if line == "" {
			continue
		}
		ids = append(ids, oracle.ID(line))
	}
	return ids
}

// Label returns the commit id recorded under name, populated by a prior
// Label instruction.
func (s *Store) Label(name string) (oracle.ID, bool, error) {
	text, err := s.readString(filepath.Join(labelsDir, name))
	if errors.Is(err, ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return oracle.ID(strings.TrimSpace(text)), true, nil
}

// SetLabel records id under name. Returns an error if the label already
// exists -- labels form a flat, write-once namespace within one run.
func (s *Store) SetLabel(name string, id oracle.ID) error {
	path := filepath.Join(labelsDir, name)
	if _, ok, err := s.Label(name); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("label %q already exists", name)
	}
	return s.writeString(path, id.String())
}

// OrigHead returns the commit HEAD pointed to when the run started.
func (s *Store) OrigHead() (oracle.ID, error) {
	text, err := s.readString(origHeadFile)
	if err != nil {
		return "", err
	}
	return oracle.ID(strings.TrimSpace(text)), nil
}

// SetOrigHead records HEAD's commit at the start of the run.
func (s *Store) SetOrigHead(id oracle.ID) error { return s.writeString(origHeadFile, id.String()) }

// Onto returns the commit the run is rebasing onto.
func (s *Store) Onto() (oracle.ID, error) {
	text, err := s.readString(ontoFile)
	if err != nil {
		return "", err
	}
	return oracle.ID(strings.TrimSpace(text)), nil
}

// SetOnto records the commit the run rebases onto.
func (s *Store) SetOnto(id oracle.ID) error { return s.writeString(ontoFile, id.String()) }

// HeadName returns the symbolic name (branch) that should be restored to
// point at the final HEAD on successful completion. It returns ErrNotExist
// if none was recorded, as for a run started on a detached HEAD.
func (s *Store) HeadName() (string, error) { return s.readString(headNameFile) }

// SetHeadName records the branch to restore on completion.
func (s *Store) SetHeadName(name string) error { return s.writeString(headNameFile, name) }

// Upstream returns the original upstream ref the run was started with.
func (s *Store) Upstream() (string, error) { return s.readString(upstreamFile) }

// SetUpstream records the upstream ref the run was started with.
func (s *Store) SetUpstream(ref string) error { return s.writeString(upstreamFile, ref) }

// ReadOptions returns the flags the run was started with.
func (s *Store) ReadOptions() (Options, error) {
	b, err := os.ReadFile(s.path(optionsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Options{}, ErrNotExist
		}
		return Options{}, fmt.Errorf("read options: %w", err)
	}
	var opts Options
	if err := yaml.Unmarshal(b, &opts); err != nil {
		return Options{}, fmt.Errorf("unmarshal options: %w", err)
	}
	return opts, nil
}

// WriteOptions persists the flags a run was started with.
func (s *Store) WriteOptions(opts Options) error {
	b, err := yaml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	return s.writeString(optionsFile, string(b))
}

// SetInteractive, SetVerbose, and SetDropped record boolean flag/artifact
// files the same way git's own sequencer does: presence means true.

// SetInteractive marks the run as interactive.
func (s *Store) SetInteractive() error { return s.writeString(interactiveFile, "") }

// SetVerbose marks the run as verbose.
func (s *Store) SetVerbose() error { return s.writeString(verboseFile, "") }

// IsVerbose reports whether the run was started with verbose output.
func (s *Store) IsVerbose() bool { return s.Exists() && s.fileExists(verboseFile) }

func (s *Store) fileExists(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}

// WritePatch materialises the conflicted diff for the user to inspect at a
// pause.
func (s *Store) WritePatch(diff string) error { return s.writeString(patchFile, diff) }

// SetDropped records that the current instruction's commit was dropped
// (skip), for display in a later status dump.
func (s *Store) SetDropped(subject string) error { return s.appendLine(droppedFile, subject) }

// Dropped returns the subjects of commits dropped so far via skip.
func (s *Store) Dropped() ([]string, error) {
	text, err := s.readString(droppedFile)
	if errors.Is(err, ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var subjects []string
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if line != "" {
			subjects = append(subjects, line)
		}
	}
	return subjects, nil
}
