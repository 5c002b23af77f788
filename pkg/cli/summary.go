package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/tagship/pkg/domain/model"
)

var (
	okMark   = color.New(color.FgGreen, color.Bold).Sprint("✔")
	failMark = color.New(color.FgRed, color.Bold).Sprint("✘")
	skipMark = color.New(color.FgYellow).Sprint("-")
	dim      = color.New(color.Faint).SprintFunc()
)

// printSummary writes a per-step overview of run for humans
func printSummary(w io.Writer, run *model.Run) {
	fmt.Fprintf(w, "\n%s %s (%s)\n", color.New(color.Bold).Sprint("Release"), run.Tag, dim(run.ID))

	for _, step := range run.Steps {
		mark := okMark
		if step.Status == model.RunStatusFailed {
			mark = failMark
		}
		line := fmt.Sprintf("  %s %-9s %s", mark, step.Name, dim(step.FinishedAt.Sub(step.StartedAt).Round(time.Millisecond)))
		if step.Error != "" {
			line += "  " + color.RedString(step.Error)
		}
		fmt.Fprintln(w, line)
	}

	for _, name := range run.Artifacts {
		fmt.Fprintf(w, "    %s %s\n", dim("artifact"), name)
	}

	switch run.Status {
	case model.RunStatusSucceeded:
		fmt.Fprintln(w, color.GreenString("Published %s", run.Tag))
	default:
		fmt.Fprintln(w, color.RedString("Release of %s %s", run.Tag, run.Status))
	}
}

func printSkipped(w io.Writer, ref string) {
	fmt.Fprintf(w, "%s %s is not a release tag, nothing to do\n", skipMark, ref)
}
