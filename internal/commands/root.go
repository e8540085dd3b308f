package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/transmailifier/transmailifier/internal/buildinfo"
	"github.com/transmailifier/transmailifier/internal/config"
	"github.com/transmailifier/transmailifier/internal/ledger"
	"github.com/transmailifier/transmailifier/internal/logger"
	"github.com/transmailifier/transmailifier/internal/notify"
	"github.com/transmailifier/transmailifier/internal/storage"
)

// Option customizes the root command.
type Option func(*app)

// WithNotifier replaces the SMTP mailer built from the mailer config.
func WithNotifier(f func(config.MailerConfig) notify.Notifier) Option {
	return func(a *app) { a.newNotifier = f }
}

// WithInteractive overrides the check for whether stdin can answer prompts.
func WithInteractive(f func(io.Reader) bool) Option {
	return func(a *app) { a.interactive = f }
}

// app holds global flags and the collaborators subcommands share.
type app struct {
	configPath string
	envFile    string
	verbose    bool

	newNotifier func(config.MailerConfig) notify.Notifier
	interactive func(io.Reader) bool
}

// NewRootCommand creates the top-level transmailifier command.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &app{
		newNotifier: func(cfg config.MailerConfig) notify.Notifier { return notify.NewSMTPMailer(cfg) },
		interactive: isTerminal,
	}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:               "transmailifier",
		Short:             "Mail new bank statement transactions as CSV",
		Version:           buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		SilenceUsage:      true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", config.DefaultFile, "config file")
	flags.StringVar(&a.envFile, "env-file", "", "dotenv file with mailer secrets")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(newInitCommand())
	root.AddCommand(newProcessCommand(a))
	root.AddCommand(newSummaryCommand(a))

	return root
}

// logger returns the run logger and a context carrying it.
func (a *app) logger(cmd *cobra.Command) (zerolog.Logger, context.Context) {
	log := logger.New(cmd.ErrOrStderr(), a.verbose)
	return log, logger.WithContext(cmd.Context(), log)
}

// loadConfig reads the config file named by --config.
func (a *app) loadConfig() (*config.Config, error) {
	return config.Load(a.configPath)
}

// resolveMailer expands ${VAR} placeholders in the mailer config. Variables
// already set in the environment win over the --env-file ones.
func (a *app) resolveMailer(cfg *config.Config) error {
	vars := map[string]string{}
	if a.envFile != "" {
		var err error
		if vars, err = godotenv.Read(a.envFile); err != nil {
			return fmt.Errorf("reading env file: %w", err)
		}
	}
	return cfg.Mailer.ResolveSecrets(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := vars[key]
		return v, ok
	})
}

// readLedger opens path with the named profile.
func readLedger(cfg *config.Config, profile, path string) (*ledger.Ledger, error) {
	return ledger.NewReader(cfg, nil).Read(path, profile)
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage.Store, error) {
	return storage.Open(ctx, cfg.Storage.Path, storage.WithLogger(log))
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
