// Package cmd provides the CLI commands for curia.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/curia-rag/curia/internal/config"
	"github.com/curia-rag/curia/internal/errors"
	"github.com/curia-rag/curia/internal/logging"
	"github.com/curia-rag/curia/pkg/version"
)

// skipConfig marks commands that run without resolving the configuration.
const skipConfig = "skip-config"

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	dataPath   string
	dbPath     string
	collection string
	embedModel string
	llm        string
	ollamaHost string
	logLevel   string
	debug      bool
}

// app is the resolved configuration and logger of one invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

type appKey struct{}

// NewRootCmd creates the root command for the curia CLI.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "curia",
		Short: "Ask questions about a folder of legal documents",
		Long: `curia indexes the PDF and text documents in a data directory into a local
vector store and answers questions about them with a language model served
by Ollama.

Only new or modified documents are processed on each run, so 'curia index'
can be repeated cheaply as documents are added.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("curia version {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Config file (default: ./curia.yaml if present)")
	pf.StringVar(&flags.dataPath, "data", "", "Directory holding the documents to index")
	pf.StringVar(&flags.dbPath, "db", "", "Directory holding the vector store and ledger")
	pf.StringVar(&flags.collection, "collection", "", "Vector collection name")
	pf.StringVar(&flags.embedModel, "embed-model", "", "Ollama embedding model")
	pf.StringVar(&flags.llm, "llm", "", "Ollama language model")
	pf.StringVar(&flags.ollamaHost, "ollama-host", "", "Ollama API endpoint")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&flags.debug, "debug", false, "Enable debug logging, mirrored to stderr")

	cmd.PersistentPreRunE = func(c *cobra.Command, _ []string) error {
		if c.Annotations[skipConfig] == "true" {
			return nil
		}
		a, err := setup(flags, c.ErrOrStderr())
		if err != nil {
			return err
		}
		c.SetContext(context.WithValue(c.Context(), appKey{}, a))
		return nil
	}
	cmd.PersistentPostRunE = func(c *cobra.Command, _ []string) error {
		if a := appFrom(c); a != nil && a.cleanup != nil {
			a.cleanup()
		}
		return nil
	}

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newRetrieveCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newPullCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints a failure the way the CLI formats errors.
func Execute() error {
	root := NewRootCmd()
	c, err := root.ExecuteC()
	if err != nil {
		fmt.Fprint(root.ErrOrStderr(), errors.FormatForCLI(err))
		if a := appFrom(c); a != nil {
			a.logger.Error("command_failed", slog.String("command", c.CommandPath()), slog.String("error", err.Error()))
			if a.cleanup != nil {
				a.cleanup()
			}
		}
	}
	return err
}

// setup resolves the configuration and opens the log.
func setup(flags *globalFlags, stderr io.Writer) (*app, error) {
	cfg, err := config.Resolve(flags.configPath, flags.overrides())
	if err != nil {
		return nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	if cfg.Logging.File != "" {
		logCfg.FilePath = cfg.Logging.File
	}
	if flags.debug {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
		logCfg.Stderr = stderr
	}
	logger, cleanup, err := logging.New(logCfg)
	if err != nil {
		return nil, errors.IOError("cannot open log file", err).WithDetail("path", logCfg.FilePath)
	}

	for _, w := range cfg.Warnings() {
		logger.Warn("config_warning", slog.String("warning", w))
	}
	logger.Debug("config_resolved",
		slog.String("data_path", cfg.Data.DataPath),
		slog.String("db_path", cfg.Data.DBPath),
		slog.String("collection", cfg.Data.CollectionName),
		slog.String("version", version.Version))

	return &app{cfg: cfg, logger: logger, cleanup: cleanup}, nil
}

func (f *globalFlags) overrides() config.Overrides {
	return config.Overrides{
		DataPath:   f.dataPath,
		DBPath:     f.dbPath,
		Collection: f.collection,
		EmbedModel: f.embedModel,
		LLM:        f.llm,
		OllamaHost: f.ollamaHost,
		LogLevel:   f.logLevel,
	}
}

func appFrom(c *cobra.Command) *app {
	if c == nil || c.Context() == nil {
		return nil
	}
	a, _ := c.Context().Value(appKey{}).(*app)
	return a
}

// mustApp returns the app set up by the root pre-run hook.
func mustApp(c *cobra.Command) (*app, error) {
	a := appFrom(c)
	if a == nil {
		return nil, errors.InternalError("configuration was not resolved", nil)
	}
	return a, nil
}

// notifyContext cancels on Ctrl+C and SIGTERM.
func notifyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
