package main

import (
	"fmt"
	"log/slog"
	"os"
)

var version = "dev"

var commands = map[string]func([]string) error{
	"run":      runRun,
	"validate": runValidate,
	"render":   runRender,
}

func usage() {
	fmt.Fprintf(os.Stderr, `remediate - alert remediation runner (version %s)

Usage:
  remediate <command> [options]

Commands:
  run        Run matching playbooks for an Alertmanager payload
  validate   Validate a playbook configuration file
  render     Render a command template against a set of labels

Run 'remediate <command> -h' for command-specific help.
`, version)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		usage()
		os.Exit(0)
	}
	if cmd == "-v" || cmd == "--version" || cmd == "version" {
		fmt.Println(version)
		os.Exit(0)
	}

	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd) //nolint:gosec // G705: CLI error output
		usage()
		os.Exit(1)
	}

	if err := fn(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err) //nolint:gosec // G705: CLI error output
		os.Exit(1)
	}
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
