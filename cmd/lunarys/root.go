package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fwojciec/lunarys"
	bt "github.com/fwojciec/lunarys/bubbletea"
	lunaryshttp "github.com/fwojciec/lunarys/http"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var errNotTerminal = errors.New("interactive chat needs a terminal; use \"lunarys ask\" instead")

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	v       *viper.Viper
	cfgFile string
	stdout  io.Writer
	stderr  io.Writer

	// interactive reports whether stdin is a terminal a user can answer
	// prompts on.
	interactive func() bool

	cfg     config
	logger  *logrus.Logger
	closer  io.Closer
	backend *lunaryshttp.Client
}

func newApp(stdout, stderr io.Writer) *app {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}
	a.interactive = func() bool {
		return term.IsTerminal(int(os.Stdin.Fd()))
	}
	setDefaults(a.v)
	return a
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	return newApp(stdout, stderr).command()
}

// command builds the command tree. Flags are bound to a.v.
func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:   "lunarys",
		Short: "Chat with a Lunarys server from the terminal",
		Long: `lunarys is a terminal client for the Lunarys chat server.

Without a subcommand it opens the interactive chat. Replies stream in as
they are generated; reasoning models show their reasoning in a
collapsible block.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTUI(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default ~/.lunarys/config.yaml)")
	flags.String("base-url", "", "chat server URL")
	flags.StringP("model", "m", "", "model: deepseek-chat or deepseek-reasoner")
	flags.Bool("stream", true, "stream replies as they are generated")
	flags.String("locale", "", "language of generated messages: en or zh")
	flags.String("theme", "", "color theme: auto, dark, light or plain")
	flags.Duration("timeout", 0, "timeout for non-streaming requests")
	flags.String("log-level", "", "log level")
	flags.String("log-file", "", `log file, "-" for stderr`)
	flags.String("log-format", "", "log format: text or json")

	for key, flag := range map[string]string{
		"base_url":   "base-url",
		"model":      "model",
		"stream":     "stream",
		"locale":     "locale",
		"theme":      "theme",
		"timeout":    "timeout",
		"log.level":  "log-level",
		"log.file":   "log-file",
		"log.format": "log-format",
	} {
		// Only the error for an unknown flag name is possible here.
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newAskCmd(a),
		newConversationsCmd(a),
		newHistoryCmd(a),
		newDeleteCmd(a),
		newExportCmd(a),
	)
	return root
}

func (a *app) setup() error {
	if err := readConfig(a.v, a.cfgFile); err != nil {
		return err
	}
	cfg, err := loadConfig(a.v)
	if err != nil {
		return err
	}
	logger, closer, err := newLogger(cfg, a.stderr)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.closer = closer
	a.backend = lunaryshttp.New(
		lunaryshttp.WithBaseURL(cfg.BaseURL),
		lunaryshttp.WithTimeout(cfg.Timeout),
		lunaryshttp.WithLogger(logger),
	)
	logger.WithFields(logrus.Fields{
		"base_url": cfg.BaseURL,
		"model":    cfg.Model,
		"stream":   cfg.Stream,
	}).Debug("configuration loaded")
	return nil
}

func (a *app) teardown() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func (a *app) newChat() *lunarys.Chat {
	return lunarys.NewChat(a.backend,
		lunarys.WithLogger(a.logger),
		lunarys.WithLocale(a.cfg.Locale),
		lunarys.WithModel(a.cfg.Model),
		lunarys.WithStreaming(a.cfg.Stream),
	)
}

func (a *app) runTUI(cmd *cobra.Command) error {
	if !a.interactive() {
		return errNotTerminal
	}
	m := bt.New(a.newChat(), a.cfg.Theme)
	if err := bt.Run(cmd.Context(), m); err != nil {
		return fmt.Errorf("TUI: %w", err)
	}
	return nil
}
