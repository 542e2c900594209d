package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rancher/renovate-config/internal/app"
	"github.com/rancher/renovate-config/internal/config"
	"github.com/rancher/renovate-config/internal/source"
)

type rootOptions struct {
	logLevel  string
	logFormat string
}

type loadOptions struct {
	strict                bool
	allowPlaintextSecrets bool
	format                string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "renovate-config",
		Short:         "Validate and inspect Renovate configuration files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")

	root.AddCommand(newValidateCommand(opts))
	root.AddCommand(newPrintCommand(opts))
	root.AddCommand(newActionCommand())
	return root
}

// logger writes to stderr so command output on stdout stays machine readable.
func (o *rootOptions) logger(cmd *cobra.Command) (*slog.Logger, error) {
	return app.NewLoggerTo(cmd.ErrOrStderr(), o.logLevel, o.logFormat)
}

func (o *loadOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.strict, "strict", false, "reject duplicate keys instead of letting the last declaration win")
	cmd.Flags().BoolVar(&o.allowPlaintextSecrets, "allow-plaintext-secrets", false, "accept literal passwords and tokens in hostRules")
	cmd.Flags().StringVar(&o.format, "format", "", "override format detection (json, json5, yaml, toml, js)")
}

// read resolves path and applies the --format override.
func (o *loadOptions) read(path string) (config.Source, error) {
	var format config.Format
	if o.format != "" {
		f, err := config.ParseFormat(o.format)
		if err != nil {
			return config.Source{}, err
		}
		format = f
	}

	src, err := source.Resolve(path)
	if err != nil {
		if format == "" {
			return config.Source{}, err
		}
		// Names without a known extension can still be read when the format is given.
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return config.Source{}, err
		}
		src = config.Source{Name: path, Data: data}
	}
	if format != "" {
		src.Format = format
	}
	return src, nil
}

func (o *loadOptions) loader(log *slog.Logger) *config.Loader {
	return &config.Loader{
		Env:                   config.OSEnv{},
		Logger:                log,
		Strict:                o.strict,
		AllowPlaintextSecrets: o.allowPlaintextSecrets,
	}
}

func newValidateCommand(root *rootOptions) *cobra.Command {
	opts := &loadOptions{}
	var watch bool

	cmd := &cobra.Command{
		Use:   "validate [path...]",
		Short: "Validate configuration files or discover them in directories",
		Long: "Validate loads each path and reports the first error found in it. A directory is searched for " +
			"the standard Renovate configuration file names. With no arguments the current directory is used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := root.logger(cmd)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{"."}
			}
			loader := opts.loader(log)

			if watch {
				if len(args) != 1 {
					return fmt.Errorf("--watch takes exactly one file")
				}
				w := &source.Watcher{Logger: log, Read: opts.read}
				return w.Watch(cmd.Context(), args[0], func(src config.Source, err error) {
					if err == nil {
						_, err = loader.Load(src)
					}
					report(cmd, args[0], err)
				})
			}

			failed := 0
			for _, path := range args {
				src, err := opts.read(path)
				if err == nil {
					_, err = loader.Load(src)
					path = src.Name
				}
				if !report(cmd, path, err) {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d configuration(s) invalid", failed, len(args))
			}
			return nil
		},
	}
	opts.bind(cmd)
	cmd.Flags().BoolVar(&watch, "watch", false, "re-validate the file whenever it changes")
	return cmd
}

func report(cmd *cobra.Command, name string, err error) bool {
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", name, err)
		return false
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ok   %s\n", name)
	return true
}

func newPrintCommand(root *rootOptions) *cobra.Command {
	opts := &loadOptions{}

	cmd := &cobra.Command{
		Use:   "print [path]",
		Short: "Print the resolved configuration as JSON with credentials redacted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := root.logger(cmd)
			if err != nil {
				return err
			}
			path := "."
			if len(args) == 1 {
				path = args[0]
			}

			src, err := opts.read(path)
			if err != nil {
				return err
			}
			doc, err := opts.loader(log).Load(src)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("encode %s: %w", src.Name, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	opts.bind(cmd)
	return cmd
}

func newActionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "action",
		Short: "Run as a GitHub Action, reading INPUT_* and GITHUB_* environment variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			runner, err := app.NewRunner(cfg)
			if err != nil {
				return fmt.Errorf("failed to create runner: %w", err)
			}

			return runner.Run(cmd.Context())
		},
	}
}
