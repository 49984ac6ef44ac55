// Package cli provides the webhookctl command line tool.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type options struct {
	v         *viper.Viper
	verbosity int
	logger    *slog.Logger
}

// New returns the root command for webhookctl.
func New() *cobra.Command {
	opts := &options{v: viper.New()}
	opts.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	opts.v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "webhookctl",
		Short:         "Sign, verify and send webhook deliveries",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.logger = slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: slog.LevelWarn - slog.Level(opts.verbosity*4),
			}))
		},
	}

	cmd.PersistentFlags().CountVarP(&opts.verbosity, "verbose", "v", "increase log verbosity")
	cmd.PersistentFlags().String("secret", "", "[WEBHOOK_SECRET] shared signing secret")
	opts.v.BindPFlag("webhook_secret", cmd.PersistentFlags().Lookup("secret"))

	cmd.AddCommand(
		cmdSign(opts),
		cmdVerify(opts),
		cmdSend(opts),
	)

	return cmd
}

// Execute runs the root command and reports errors on stderr.
func Execute() int {
	cmd := New()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
		return 1
	}
	return 0
}

func (o *options) secret() string {
	return o.v.GetString("webhook_secret")
}

// readInput returns the file contents, or stdin when path is empty or "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
