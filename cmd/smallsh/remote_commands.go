package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/loykin/smallsh/pkg/client"
)

func addClientFlags(cmd *cobra.Command, f *ClientFlags) {
	cmd.Flags().StringVar(&f.APIUrl, "api-url", client.DefaultBaseURL, "API base URL of a running shell")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", client.DefaultTimeout, "request timeout")
	cmd.Flags().StringVar(&f.CACert, "ca-cert", "", "CA certificate to verify an HTTPS API")
	cmd.Flags().BoolVar(&f.Insecure, "insecure", false, "skip TLS verification")
}

func newClient(f ClientFlags) (*client.Client, error) {
	cfg := client.Config{BaseURL: f.APIUrl, Timeout: f.APITimeout, Insecure: f.Insecure}
	if f.CACert != "" {
		cfg.TLS = &client.TLSClientConfig{CACert: f.CACert}
	}
	return client.New(cfg)
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// createJobsCommand lists the background children of a running shell.
func createJobsCommand() *cobra.Command {
	f := &ClientFlags{}
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List background jobs of a running shell",
		Long: `List background children not yet reaped by a shell started with
--api-listen.

Examples:
  smallsh jobs --api-url=http://127.0.0.1:8089/api`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cl, err := newClient(*f)
			if err != nil {
				return err
			}
			jobs, err := cl.Jobs(c.Context())
			if err != nil {
				return err
			}
			if jobs == nil {
				jobs = []client.Job{}
			}
			return printJSON(c.OutOrStdout(), jobs)
		},
	}
	addClientFlags(cmd, f)
	return cmd
}

func createStateCommand() *cobra.Command {
	f := &ClientFlags{}
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show mode and last status of a running shell",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cl, err := newClient(*f)
			if err != nil {
				return err
			}
			st, err := cl.State(c.Context())
			if err != nil {
				return err
			}
			return printJSON(c.OutOrStdout(), st)
		},
	}
	addClientFlags(cmd, f)
	return cmd
}

func createHistoryCommand() *cobra.Command {
	f := &ClientFlags{}
	hf := &HistoryFlags{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded command history of a running shell",
		Long: `Show command history recorded by a shell started with --history and
--api-listen. Defaults to that shell's own session.

Examples:
  smallsh history --limit=20
  smallsh history --all`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cl, err := newClient(*f)
			if err != nil {
				return err
			}
			_, events, err := cl.History(c.Context(), client.HistoryQuery{
				Session: hf.Session,
				All:     hf.All,
				Limit:   hf.Limit,
			})
			if err != nil {
				return err
			}
			if events == nil {
				events = []client.HistoryEvent{}
			}
			return printJSON(c.OutOrStdout(), events)
		},
	}
	addClientFlags(cmd, f)
	cmd.Flags().StringVar(&hf.Session, "session", "", "session id (default: the shell's own)")
	cmd.Flags().BoolVar(&hf.All, "all", false, "list every session")
	cmd.Flags().IntVar(&hf.Limit, "limit", 100, "maximum number of events")
	return cmd
}
