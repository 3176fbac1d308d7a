// Package author reads and writes the author-script file: a shell-style
// assignment list of GIT_AUTHOR_* variables captured before a pause, so
// that the eventual `continue` can restore the original author identity
// instead of attributing the finished commit to whoever resolved the
// conflict.
package author

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gitseq/sequencer/internal/oracle"
)

const (
	nameVar  = "GIT_AUTHOR_NAME"
	emailVar = "GIT_AUTHOR_EMAIL"
	dateVar  = "GIT_AUTHOR_DATE"
)

// Read parses an author-script file at path into an [oracle.Author].
// Returns an error wrapping os.ErrNotExist if the file does not exist.
func Read(path string) (oracle.Author, error) {
	f, err := os.Open(path)
	if err != nil {
		return oracle.Author{}, fmt.Errorf("open author script: %w", err)
	}
	defer f.Close()

	vars := make(map[string]string, 3)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			return oracle.Author{}, fmt.Errorf("malformed author script line %q", line)
		}
		unquoted, err := strconv.Unquote(val)
		if err != nil {
			unquoted = val
		}
		vars[key] = unquoted
	}
	if err := scanner.Err(); err != nil {
		return oracle.Author{}, fmt.Errorf("read author script: %w", err)
	}

	name, ok := vars[nameVar]
	if !ok {
		return oracle.Author{}, fmt.Errorf("author script missing %s", nameVar)
	}
	email, ok := vars[emailVar]
	if !ok {
		return oracle.Author{}, fmt.Errorf("author script missing %s", emailVar)
	}
	return oracle.Author{Name: name, Email: email, Date: vars[dateVar]}, nil
}

// Write persists a as a shell-evaluable author-script file at path.
func Write(path string, a oracle.Author) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s\n", nameVar, strconv.Quote(a.Name))
	fmt.Fprintf(&b, "%s=%s\n", emailVar, strconv.Quote(a.Email))
	if a.Date != "" {
		fmt.Fprintf(&b, "%s=%s\n", dateVar, strconv.Quote(a.Date))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o666); err != nil {
		return fmt.Errorf("write author script: %w", err)
	}
	return nil
}

// Remove deletes the author-script file, ignoring a not-exist error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove author script: %w", err)
	}
	return nil
}
