// Command botstudio is the console for the chatbot builder: projects, the
// knowledge base, the playground, API keys, analytics and billing.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gwi.com/botstudio/internal/apiclient"
	"gwi.com/botstudio/internal/config"
	"gwi.com/botstudio/internal/dashboard"
	"gwi.com/botstudio/internal/logging"
	"gwi.com/botstudio/internal/session"
	"gwi.com/botstudio/internal/tokenstore"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, options{}, os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// options lets tests replace what main would otherwise build from the
// environment.
type options struct {
	config func() (*config.Config, error)
	tokens tokenstore.Store
	logger *zap.Logger
	out    io.Writer
}

// app is the per-invocation wiring every command works through.
type app struct {
	opts options

	cfg     *config.Config
	logger  *zap.Logger
	client  *apiclient.Client
	session *session.Store
	svc     *dashboard.Service
}

func (a *app) init(ctx context.Context) error {
	if a.session != nil {
		return nil
	}
	loadConfig := a.opts.config
	if loadConfig == nil {
		loadConfig = config.LoadConfig
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateClient(); err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = a.opts.logger
	if a.logger == nil {
		a.logger, err = logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
	}

	tokens := a.opts.tokens
	if tokens == nil {
		tokens, err = tokenstore.Open(cfg.TokenStore, cfg.TokenFile)
		if err != nil {
			return err
		}
	}

	a.client = apiclient.New(cfg.APIBaseURL, tokens, a.logger)
	a.session = session.NewStore(a.client, tokens, a.logger)
	a.svc = dashboard.NewService(a.client, a.session, cfg.PublicAPIURL, a.logger)
	return a.session.Bootstrap(ctx)
}

// requireLogin fails commands that need an account when the stored token
// did not restore a session.
func (a *app) requireLogin() error {
	if a.session.State() != session.StateAuthenticated {
		return errors.New("not logged in, run `botstudio login` first")
	}
	return nil
}

// loggedIn is the PersistentPreRunE of command groups that need an account.
// It replaces the root hook, so it initializes too.
func (a *app) loggedIn(cmd *cobra.Command, _ []string) error {
	if err := a.init(cmd.Context()); err != nil {
		return err
	}
	return a.requireLogin()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "botstudio",
		Short: "Build, test and deploy knowledge-base chatbots",
		Long: `botstudio is the console for the chatbot builder backend.

Log in, upload documents to your knowledge base, try them in the playground,
and deploy projects behind API keys.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
	}

	root.AddCommand(
		newLoginCmd(a),
		newSignupCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newProjectsCmd(a),
		newDataCmd(a),
		newChatCmd(a),
		newKeysCmd(a),
		newProfileCmd(a),
		newAnalyticsCmd(a),
		newBillingCmd(a),
	)
	return root
}

// execute runs one invocation and prints the toasts it raised. Errors that
// already produced an error toast are not printed twice.
func execute(ctx context.Context, opts options, args []string) error {
	a := &app{opts: opts}
	root := newRootCmd(a)
	root.SetArgs(args)
	if opts.out != nil {
		root.SetOut(opts.out)
		root.SetErr(opts.out)
	}

	err := root.ExecuteContext(ctx)

	out := root.ErrOrStderr()
	reported := false
	if a.session != nil {
		reported = printToasts(out, a.session.DrainNotifications())
	}
	if err != nil && !reported {
		fmt.Fprintln(out, errorStyle.Render("Error: "+err.Error()))
	}
	if a.logger != nil && a.opts.logger == nil {
		_ = a.logger.Sync()
	}
	return err
}
