package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/api"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/config"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/meeting"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/output"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/session"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/vault"
)

type rootOptions struct {
	serverURL  string
	configPath string
	flow       string
	verbose    bool
}

// Dependencies is everything a command needs, built once per invocation.
type Dependencies struct {
	Config  *config.Config
	Logger  *log.Logger
	Vault   *vault.Vault
	Store   *session.Store
	Guard   *session.Guard
	Client  *api.Client
	Flow    meeting.Flow
	Out     *output.Formatter
	Prompts *prompter
}

func NewRootCmd(version, buildDate string) *cobra.Command {
	o := &rootOptions{}
	root := &cobra.Command{
		Use:           "meetflow",
		Short:         "Schedule, run and close out meetings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&o.serverURL, "server", "", "Server base URL (overrides config)")
	root.PersistentFlags().StringVar(&o.configPath, "config", "", "Path to config.toml")
	root.PersistentFlags().StringVar(&o.flow, "flow", "", "Completion flow: verified or quick")
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "Log warnings to stderr")

	root.AddCommand(newVersionCmd(version, buildDate))
	root.AddCommand(newAuthCmd(o))
	root.AddCommand(newMeetingsCmd(o))
	root.AddCommand(newVaultCmd(o))
	return root
}

func (o *rootOptions) deps(cmd *cobra.Command) (*Dependencies, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.serverURL != "" {
		cfg.ServerURL = o.serverURL
	}
	if o.flow != "" {
		cfg.Flow = o.flow
	}
	flow, err := meeting.FlowByName(cfg.Flow)
	if err != nil {
		return nil, err
	}

	var logSink io.Writer = io.Discard
	if o.verbose {
		logSink = cmd.ErrOrStderr()
	}
	logger := log.New(logSink, "meetflow: ", 0)

	keys := vault.New(cfg.StateDir)
	store := session.NewStore(cfg.StateDir, keys)
	guard := session.NewGuard(store, logger)
	client := api.New(cfg.ServerURL, store)
	client.OnUnauthorized(guard.OnRejected)

	out := output.NewFormatter(cmd.OutOrStdout())
	guard.OnSignOut(func() {
		out.Warning("Session expired, please login again.")
	})

	return &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Vault:   keys,
		Store:   store,
		Guard:   guard,
		Client:  client,
		Flow:    flow,
		Out:     out,
		Prompts: newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()),
	}, nil
}

// requireSession restores the stored session and fails when there is none.
func (d *Dependencies) requireSession(cmd *cobra.Command) error {
	ok, err := d.Guard.Bootstrap(cmd.Context(), d.Client.Profile)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not logged in: run `meetflow auth login`")
	}
	return nil
}

func (d *Dependencies) lifecycle() *meeting.Lifecycle {
	return meeting.New(d.Client, d.Guard, d.Flow, d.Logger, meeting.WithPendingStore(meeting.NewPendingFile(d.Config.StateDir)))
}

// Execute runs the root command and prints a failure the way the rest of
// the CLI prints messages.
func Execute(root *cobra.Command) int {
	if err := root.Execute(); err != nil {
		output.NewFormatter(os.Stderr).Error(err.Error())
		return 1
	}
	return 0
}
