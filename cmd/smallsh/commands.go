package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loykin/smallsh"
	"github.com/loykin/smallsh/internal/config"
)

// command runs the shell and keeps its exit code for main.
type command struct {
	stdin, stdout, stderr *os.File
	code                  int
}

// buildRoot creates the root command with its subcommands.
func buildRoot(stdin, stdout, stderr *os.File) (*cobra.Command, *command) {
	flags := &RootFlags{}
	cmd := &command{stdin: stdin, stdout: stdout, stderr: stderr}
	loader := config.NewLoader(nil)

	root := &cobra.Command{
		Use:   "smallsh",
		Short: "A small line-oriented shell",
		Long: `smallsh reads one command per line and runs it in the foreground, or in
the background when the line ends with '&'. It supports '<' and '>'
redirection and the built-ins cd, status and exit.

Examples:
  smallsh
  smallsh --history ~/.smallsh/history.db
  smallsh --config smallsh.toml --api-listen 127.0.0.1:8089`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGTERM, syscall.SIGHUP)
			defer stop()
			return cmd.Run(ctx, loader, *flags)
		},
	}

	fs := root.Flags()
	fs.StringVar(&flags.ConfigPath, "config", "", "path to config file (TOML, YAML or JSON)")
	fs.StringVar(&flags.LogFile, "log-file", "", "write diagnostics to this rotating log file")
	fs.StringVar(&flags.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.BoolVar(&flags.LogStderr, "log-stderr", false, "also write diagnostics to stderr")
	fs.StringVar(&flags.History, "history", "", "command history DSN (sqlite path, postgres://, clickhouse://, opensearch://)")
	fs.StringVar(&flags.APIListen, "api-listen", "", "serve the read-only API on this address (host:port)")
	fs.StringVar(&flags.Prompt, "prompt", config.DefaultPrompt, "prompt string")

	v := loader.Viper()
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(
		createVersionCommand(),
		createJobsCommand(),
		createStateCommand(),
		createHistoryCommand(),
	)
	return root, cmd
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(c.OutOrStdout(), "smallsh %s\n", version)
		},
	}
}

// Run loads the configuration, then runs the shell until it exits.
func (c *command) Run(ctx context.Context, loader *config.Loader, f RootFlags) error {
	conf, err := loader.Load(f.ConfigPath)
	if err != nil {
		return err
	}
	sh, err := smallsh.New(conf, smallsh.Stdio{In: c.stdin, Out: c.stdout, Err: c.stderr})
	if err != nil {
		return err
	}
	defer func() { _ = sh.Close() }()

	slog.SetDefault(sh.Logger())
	slog.Debug("shell starting", "config", f.ConfigPath, "pid", os.Getpid())

	code, err := sh.Run(ctx)
	c.code = code
	return err
}
