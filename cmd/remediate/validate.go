package main

import (
	"flag"
	"fmt"

	"github.com/GoCodeAlone/remediation/module"
)

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: remediate validate <playbooks.yaml>\n\nValidate a playbook configuration file, including every action's config.\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("config file path is required")
	}

	cfgPath := fs.Arg(0)
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	// Building runs each action factory, which catches bad action configs.
	if _, err := module.BuildPlaybooks(cfg, module.NewDefaultStepRegistry(), module.BuildOptions{}); err != nil {
		return fmt.Errorf("validation failed:\n%w", err)
	}

	actions := 0
	for _, pb := range cfg.Playbooks {
		actions += len(pb.Actions)
	}
	fmt.Printf("config %s is valid (%d playbooks, %d actions)\n", cfgPath, len(cfg.Playbooks), actions)
	return nil
}
