package main

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/alecthomas/kong"
)

// _version is overwritten at build time via -ldflags "-X main._version=...".
var _version = "dev"

// versionFlag implements `--version`: print a one-line build report and
// exit before any command runs.
type versionFlag bool

func (versionFlag) BeforeReset(app *kong.Kong) error {
	fmt.Fprintf(app.Stdout, "git-seq %s (%s)\n", _version, _generateBuildReport())
	app.Exit(0)
	return nil
}

// versionCmd is `git-seq version`, for scripts that would rather branch on
// an ordinary subcommand's exit code than parse a flag's output.
type versionCmd struct {
	Short bool `help:"Print only the version number."`
}

func (cmd *versionCmd) Help() string {
	return "Print git-seq's version and build information."
}

func (cmd *versionCmd) Run(app *kong.Kong) error {
	if cmd.Short {
		fmt.Fprintln(app.Stdout, _version)
		return nil
	}
	fmt.Fprintf(app.Stdout, "git-seq %s (%s)\n", _version, _generateBuildReport())
	return nil
}

var _debugReadBuildInfo = debug.ReadBuildInfo

// _generateBuildReport renders the VCS revision and build time recorded in
// the binary's embedded build info, e.g. "deadbeef-dirty 2026-07-31T00:00:00Z".
var _generateBuildReport = func() string {
	info, ok := _debugReadBuildInfo()
	if !ok {
		return ""
	}

	var revision, modified, timestamp string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value
		case "vcs.time":
			timestamp = setting.Value
		}
	}

	if revision != "" && modified == "true" {
		revision += "-dirty"
	}

	return strings.TrimSpace(revision + " " + timestamp)
}
