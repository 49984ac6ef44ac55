package cli

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/Priya8975/webhook-notifier/internal/delivery"
	"github.com/Priya8975/webhook-notifier/internal/domain"
	"github.com/Priya8975/webhook-notifier/internal/envelope"
)

type sendArgs struct {
	url       string
	event     string
	tenant    string
	actor     string
	payload   string
	file      string
	userAgent string
	timeout   time.Duration
}

func cmdSend(opts *options) *cobra.Command {
	var args sendArgs

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Deliver one envelope to a URL and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if args.url == "" {
				return errors.New("--url is required")
			}

			env, err := args.envelope(cmd)
			if err != nil {
				return err
			}

			d := delivery.NewDispatcher(delivery.Config{
				Timeout:   args.timeout,
				UserAgent: args.userAgent,
			}, opts.logger)

			result, err := d.Deliver(cmd.Context(), args.url, opts.secret(), env)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&args.url, "url", "u", "", "receiver URL")
	f.StringVarP(&args.event, "event", "e", domain.TestEventType, "event type")
	f.StringVarP(&args.tenant, "tenant", "t", "", "tenant id")
	f.StringVar(&args.actor, "actor", "", "actor id")
	f.StringVarP(&args.payload, "payload", "p", "", "JSON payload (default {\"test\":true} for test events)")
	f.StringVarP(&args.file, "file", "f", "", "read the JSON payload from a file, - for stdin")
	f.StringVar(&args.userAgent, "user-agent", envelope.DefaultUserAgent, "User-Agent header")
	f.DurationVar(&args.timeout, "timeout", delivery.DefaultTimeout, "delivery timeout")
	return cmd
}

func (a *sendArgs) envelope(cmd *cobra.Command) (*domain.EventEnvelope, error) {
	var payload json.RawMessage
	switch {
	case a.file != "":
		data, err := readInput(cmd, a.file)
		if err != nil {
			return nil, err
		}
		payload = data
	case a.payload != "":
		payload = json.RawMessage(a.payload)
	case a.event == domain.TestEventType:
		return envelope.Test(a.tenant, a.actor), nil
	}
	return envelope.New(a.event, a.tenant, a.actor, payload)
}
