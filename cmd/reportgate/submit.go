package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/reportgate/app"
	"github.com/artpar/reportgate/bootstrap"
	"github.com/artpar/reportgate/config"
)

var submitCmd = &cobra.Command{
	Use:   "submit <payload file>",
	Short: "Submit a report payload through the pipeline",
	Long: `Submit a CSV payload on behalf of a sender. The payload is decoded
against the sender's schema, routed to every matching receiver, and the
action is recorded in the history store.

Examples:
  reportgate submit results.csv --sender=simple_report.default
  reportgate submit results.csv --sender=strac.default --option=ValidatePayload
  reportgate submit results.csv --sender=strac.default --route-to=az-phd.elr`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

var (
	submitSender  string
	submitOption  string
	submitRouteTo []string
	submitDefault []string
)

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVar(&submitSender, "sender", "", "full sender name (org.client)")
	submitCmd.Flags().StringVar(&submitOption, "option", "", "processing option (ValidatePayload, SkipSend, SkipInvalidItems, SendImmediately)")
	submitCmd.Flags().StringSliceVar(&submitRouteTo, "route-to", nil, "restrict routing to these receiver full names")
	submitCmd.Flags().StringSliceVar(&submitDefault, "default", nil, "element default override (name=value)")
	submitCmd.MarkFlagRequired("sender")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return err
	}

	a, err := bootstrap.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	snd, ok := a.Senders.FindSender(submitSender)
	if !ok {
		return fmt.Errorf("unknown sender %q", submitSender)
	}

	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	defaults, err := parseDefaults(submitDefault)
	if err != nil {
		return err
	}

	result, err := a.Router.Submit(
		cmd.Context(), snd, content,
		app.ParseOption(submitOption), defaults, submitRouteTo,
		filepath.Base(args[0]),
	)
	if result != nil {
		printResult(result)
	}
	return err
}

func printResult(r *app.SubmissionResult) {
	fmt.Printf("Report:       %s\n", r.ReportID)
	fmt.Printf("Items:        %d\n", r.ItemCount)
	if len(r.Destinations) > 0 {
		fmt.Printf("Destinations: %s\n", strings.Join(r.Destinations, ", "))
	}
	for _, w := range r.Warnings {
		fmt.Printf("  warning: %s\n", w.Detail)
	}
	for _, e := range r.Errors {
		fmt.Printf("  error: %s\n", e.Detail)
	}
}

func parseDefaults(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("default %q is not name=value", p)
		}
		out[name] = value
	}
	return out, nil
}
