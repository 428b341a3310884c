// quicktranslator: a small two-language translator with a window, a terminal
// loop and an HTTP surface over the same controller.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"quicktranslator/pkg/config"
	"quicktranslator/pkg/console"
	"quicktranslator/pkg/gui"
	"quicktranslator/pkg/i18n"
	"quicktranslator/pkg/logger"
	"quicktranslator/pkg/remote"
	"quicktranslator/pkg/runner"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// options holds the global flags shared by every subcommand.
type options struct {
	configPath string
	from       string
	to         string
	provider   string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "quicktranslator",
		Short: "Translate short texts between two languages",
		Long: `quicktranslator translates short texts between a source and a target
language. Without a subcommand it opens the window.

Commands:
  gui        Open the translator window (default)
  repl       Translate lines typed in the terminal
  translate  Translate one text and print the result
  serve      Expose the translator over HTTP
  config     Create or inspect the configuration file`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGUI(opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Configuration file (default: user config dir)")
	flags.StringVar(&opts.from, "from", "", "Source language code")
	flags.StringVar(&opts.to, "to", "", "Target language code")
	flags.StringVar(&opts.provider, "provider", "", "Translation provider: mymemory, llm or pool")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log everything, including trace messages")

	_ = root.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{config.ProviderMyMemory, config.ProviderLLM, config.ProviderPool}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		newGUICmd(opts),
		newReplCmd(opts),
		newTranslateCmd(opts),
		newServeCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file and applies the flag overrides.
func loadConfig(opts *options) (*config.AppConfig, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.from != "" {
		cfg.Translation.Source = opts.from
	}
	if opts.to != "" {
		cfg.Translation.Target = opts.to
	}
	if opts.provider != "" {
		cfg.Translation.Provider = opts.provider
	}
	return cfg, nil
}

// newApp loads the configuration and prepares logging, i18n and providers.
func newApp(opts *options) (*runner.App, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	log := logger.NewLoggerTo(os.Stderr, cfg.Log.MaxLines)
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if opts.verbose {
		level = logger.TRACE
	}
	log.SetLevel(level)

	i18n.Init(cfg.UI.Language)
	return runner.NewApp(cfg, log)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// ---------------------------------------------------------------------------
// gui
// ---------------------------------------------------------------------------

func newGUICmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "gui",
		Short: "Open the translator window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGUI(opts)
		},
	}
}

func runGUI(opts *options) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	gui.CreateGUI(a)
	return nil
}

// ---------------------------------------------------------------------------
// repl
// ---------------------------------------------------------------------------

func newReplCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Translate lines typed in the terminal",
		Long: `Each line read from standard input is translated in the current direction.
  :swap    swap source and target language
  :cancel  abort the running translation
  :quit    leave`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			return console.New(a, cmd.InOrStdin(), cmd.OutOrStdout()).Run(ctx)
		},
	}
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "translate TEXT...",
		Short: "Translate one text and print the result",
		Example: `  quicktranslator translate hello world
  quicktranslator translate --from zh --to en 你好`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			result, err := console.Once(ctx, a, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// serve
// ---------------------------------------------------------------------------

func newServeCmd(opts *options) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the translator over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			if listen != "" {
				a.Config.Remote.Listen = listen
			}
			ctx, stop := signalContext()
			defer stop()
			return remote.NewServer(a).ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides [remote].listen)")
	return cmd
}

// ---------------------------------------------------------------------------
// config
// ---------------------------------------------------------------------------

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			written, err := config.Save(path, config.DefaultConfig())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), written)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration, flags applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.LLM.APIKey != "" {
				cfg.LLM.APIKey = "********"
			}
			data, err := toml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.AddCommand(initCmd, pathCmd, showCmd)
	return cmd
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "quicktranslator version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}
}
