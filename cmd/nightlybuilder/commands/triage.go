package commands

import (
	"fmt"
	"os"

	"git.home.luguber.info/inful/nightlybuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/nightlybuilder/internal/triage"
)

// TriageCmd implements the 'triage' command.
type TriageCmd struct {
	Log string `arg:"" help:"Build log to analyze" type:"existingfile"`
}

func (t *TriageCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	extractors, err := triage.FromConfig(cfg.Triage)
	if err != nil {
		return err
	}
	findings, err := triage.NewAnalyzer(extractors).AnalyzeFile(t.Log)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to read build log").
			WithContext("path", t.Log).Build()
	}
	if len(findings) == 0 {
		fmt.Fprintln(os.Stderr, "No errors found")
		return nil
	}
	for _, f := range findings {
		fmt.Printf("%s:\n", f.Label)
		for _, line := range f.Lines {
			if line == "" {
				continue
			}
			fmt.Println(line)
		}
	}
	return nil
}
