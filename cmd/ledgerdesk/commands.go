package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ledgerdesk/internal/bootstrap"
)

// exitCodeError carries a non-zero shell exit code through cobra.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

type shellRunner func(shell *bootstrap.Shell, ctx context.Context) int

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var configPath string
	var watch bool

	newShell := func() *bootstrap.Shell {
		return bootstrap.NewShell(bootstrap.Options{
			ConfigPath: configPath,
			Watch:      watch,
			Stdin:      stdin,
			Stdout:     stdout,
			Stderr:     stderr,
		})
	}
	runWith := func(run shellRunner) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			if code := run(newShell(), cmd.Context()); code != bootstrap.ExitOK {
				return exitCodeError{code: code}
			}
			return nil
		}
	}

	root := &cobra.Command{
		Use:   "ledgerdesk",
		Short: "Small-business bookkeeping desk",
		Long: `ledgerdesk prepares its database on startup (connectivity check, database
creation, schema migrations, table verification) and opens the main window
only when every step succeeded.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runWith((*bootstrap.Shell).Run),
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to ledgerdesk.yaml (default: search ., ./config and the user config directory)")
	root.Flags().BoolVar(&watch, "watch-config", true, "apply log level and metrics file changes without restart")

	root.AddCommand(&cobra.Command{
		Use:   "probe",
		Short: "Check that the configured database is reachable",
		Args:  cobra.NoArgs,
		RunE:  runWith((*bootstrap.Shell).RunProbe),
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrations",
		Short: "Show the schema version and pending migrations",
		Args:  cobra.NoArgs,
		RunE:  runWith((*bootstrap.Shell).RunMigrationStatus),
	})

	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root
}

func execute(ctx context.Context, root *cobra.Command) int {
	err := root.ExecuteContext(ctx)
	if err == nil {
		return bootstrap.ExitOK
	}

	var exitErr exitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}

	fmt.Fprintf(root.ErrOrStderr(), "ledgerdesk: %v\n", err)
	return bootstrap.ExitStartupError
}
