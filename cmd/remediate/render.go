package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/GoCodeAlone/remediation/module"
)

// labelFlags collects repeated -label name=value flags.
type labelFlags map[string]string

func (l labelFlags) String() string {
	pairs := make([]string, 0, len(l))
	for k, v := range l {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (l labelFlags) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("label %q must be name=value", s)
	}
	l[name] = value
	return nil
}

func runRender(args []string) error {
	return render(args, os.Stdout, os.Stderr)
}

func render(args []string, stdout, stderr io.Writer) error {
	labels := labelFlags{}
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	fs.Var(labels, "label", "Alert label as name=value (repeatable)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: remediate render [-label name=value ...] <template>\n\nRender a command template the way a templated pod action would.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("exactly one template argument is required")
	}

	tmpl := fs.Arg(0)
	for _, name := range module.Placeholders(tmpl) {
		if _, ok := labels[name]; !ok {
			fmt.Fprintf(stderr, "warning: label %q is not set and renders as %s\n", name, module.MissingLabel)
		}
	}
	fmt.Fprintln(stdout, module.RenderCommand(tmpl, labels))
	return nil
}
