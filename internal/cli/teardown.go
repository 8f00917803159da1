package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/apiguard/internal/core/domain"
	"github.com/vietddude/apiguard/internal/session"
)

var teardownReason string

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Clear all session state held by the configured stores",
	Args:  cobra.NoArgs,
	RunE:  runTeardown,
}

func init() {
	teardownCmd.Flags().StringVar(&teardownReason, "reason", "",
		"forced logout reason: auth_failed, session_expired, server_error, network_error")
	rootCmd.AddCommand(teardownCmd)
}

func runTeardown(cmd *cobra.Command, args []string) error {
	var reason domain.LogoutReason
	if teardownReason != "" {
		r, ok := domain.ParseLogoutReason(teardownReason)
		if !ok {
			return fmt.Errorf("unknown reason %q", teardownReason)
		}
		reason = r
	}

	a, _, err := setup(cmd)
	if err != nil {
		return err
	}

	var report session.Report
	if reason != "" {
		report = a.Teardown.Logout(cmd.Context(), reason)
	} else {
		report = a.Teardown.CleanUserSession(cmd.Context())
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintf(w, "RUN %s\tREASON %s\n", report.RunID, report.Reason)
	_, _ = fmt.Fprintln(w, "STEP\tDURATION\tERROR")
	for _, s := range report.Steps {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", s.Step, s.Duration, s.Error)
	}
	return w.Flush()
}
