package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/genomechain/genome-ledger/internal/chain"
	"github.com/genomechain/genome-ledger/internal/sim"
)

// errScenarioFailed is returned when a scenario ran but a step failed.
var errScenarioFailed = errors.New("scenario failed")

func newScenarioCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Replay scripted interactions against a fresh deployment",
	}
	var verbose bool
	runCmd := &cobra.Command{
		Use:   "run <file>...",
		Short: "Run scenario files and report every step",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				ok, err := runScenario(cmd, stdout, path, verbose)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if !ok {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", errScenarioFailed, failed, len(args))
			}
			return nil
		},
	}
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print call outputs")
	cmd.AddCommand(runCmd)
	return cmd
}

func runScenario(cmd *cobra.Command, out io.Writer, path string, verbose bool) (bool, error) {
	s, err := sim.LoadFile(path)
	if err != nil {
		return false, err
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	report, err := s.Run(cmd.Context(), chain.WithLogger(quiet))
	if err != nil {
		return false, err
	}
	printReport(out, report, verbose)
	return report.Failed() == 0, nil
}

func printReport(out io.Writer, r *sim.Report, verbose bool) {
	fmt.Fprintf(out, "== %s\n", r.Name)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, step := range r.Steps {
		status := "ok"
		if !step.Passed() {
			status = "FAIL"
		}
		result := "success"
		if step.Error != "" {
			result = step.Error
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			step.Index+1, status, step.At.Format("2006-01-02 15:04:05"), step.From, step.Call, result)
		for _, f := range step.Failures {
			fmt.Fprintf(tw, "\t\t\t\t  ! %s\t\n", f)
		}
		if verbose {
			for _, k := range sortedOutput(step.Output) {
				fmt.Fprintf(tw, "\t\t\t\t  %s = %s\t\n", k, step.Output[k])
			}
		}
	}
	_ = tw.Flush()

	fmt.Fprintln(out, "\naccounts:")
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, a := range r.Accounts {
		fmt.Fprintf(tw, "  %s\t%s\t%s native\t%s GENOME\n", a.Name, a.Address.Hex(), formatAmount(a.Native), formatAmount(a.Token))
	}
	_ = tw.Flush()

	if len(r.Proposals) > 0 {
		fmt.Fprintln(out, "\nproposals:")
		tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, p := range r.Proposals {
			fmt.Fprintf(tw, "  #%d\t%s\t%s\tfor %s\tagainst %s\tabstain %s\n",
				p.ID, p.Title, p.State, formatAmount(p.For), formatAmount(p.Against), formatAmount(p.Abstain))
		}
		_ = tw.Flush()
	}

	passed := len(r.Steps) - r.Failed()
	fmt.Fprintf(out, "\n%d/%d steps passed\n", passed, len(r.Steps))
}

// formatAmount renders an 18-decimal amount in whole units with thousands
// separators, e.g. 1,000,000,000 or 97.5.
func formatAmount(v *uint256.Int) string {
	units := chain.FormatUnits(v)
	whole, frac, _ := strings.Cut(units, ".")
	if frac != "" {
		frac = "." + frac
	}
	n, err := uint256.FromDecimal(whole)
	if err != nil {
		return units
	}
	return humanize.BigComma(n.ToBig()) + frac
}

func sortedOutput(out sim.Output) []string {
	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
