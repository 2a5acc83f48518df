// Package cmd contains the pgprovision CLI commands.
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kappakkala/pgprovision/pkg/config"
	"github.com/kappakkala/pgprovision/pkg/flags"
	"github.com/kappakkala/pgprovision/pkg/metrics"
	"github.com/kappakkala/pgprovision/pkg/provisioner"
)

// ClientFactory builds the backend client for a loaded configuration.
type ClientFactory func(strategy provisioner.Strategy, cfg *config.Config) (provisioner.Client, error)

// NewClient builds a real backend client from cfg.
func NewClient(strategy provisioner.Strategy, cfg *config.Config) (provisioner.Client, error) {
	settings, err := cfg.Settings()
	if err != nil {
		return nil, errors.Wrap(err, "building connection settings")
	}
	client, err := provisioner.NewClient(strategy, settings)
	if err != nil {
		return nil, err
	}
	if gormClient, ok := client.(*provisioner.GormClient); ok && cfg.BatchSize > 0 {
		return gormClient.WithBatchSize(cfg.BatchSize), nil
	}
	return client, nil
}

// NewRootCommand creates the pgprovision root command with every subcommand attached.
func NewRootCommand(newClient ClientFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pgprovision",
		Long:          "pgprovision creates, drops and loads PostgreSQL databases, schemas and tables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String(flags.Config, "", "Path to the YAML settings file")
	cmd.PersistentFlags().String(flags.Strategy, "", "Client backend, pq or gorm. Overrides the settings file")
	cmd.PersistentFlags().Bool(flags.Lenient, false, "Log failed operations and continue instead of exiting non-zero")
	cmd.PersistentFlags().String(flags.MetricsFile, "", "Write operation metrics to this file in textfile exposition format")
	flags.MarkPersistentFlagRequired(flags.Config, cmd)

	cmd.AddCommand(
		NewDatabasesCommand(newClient),
		NewSchemasCommand(newClient),
		NewTablesCommand(newClient),
		NewQueryCommand(newClient),
		NewCopyCommand(newClient),
	)
	return cmd
}

type session struct {
	cfg         *config.Config
	seq         *provisioner.Sequencer
	out         io.Writer
	metricsFile string
	// database overrides the settings file database for commands with a --database flag.
	database string
}

func openSession(cmd *cobra.Command, newClient ClientFactory) (*session, error) {
	fs := cmd.Flags()
	cfg, err := config.Load(flags.MustGetDefinedString(flags.Config, fs))
	if err != nil {
		return nil, err
	}

	strategy := cfg.ClientStrategy()
	if s := flags.MustGetString(flags.Strategy, fs); s != "" {
		if strategy, err = provisioner.ParseStrategy(s); err != nil {
			return nil, err
		}
	}
	mode := provisioner.ModeStrict
	if flags.MustGetBool(flags.Lenient, fs) {
		mode = provisioner.ModeLenient
	}

	database := cfg.Database
	if fs.Lookup(flags.Database) != nil {
		if d := flags.MustGetString(flags.Database, fs); d != "" {
			database = d
		}
	}

	client, err := newClient(strategy, cfg)
	if err != nil {
		return nil, err
	}
	return &session{
		cfg:         cfg,
		seq:         provisioner.NewSequencer(client, provisioner.WithMode(mode)),
		out:         cmd.OutOrStdout(),
		metricsFile: flags.MustGetString(flags.MetricsFile, fs),
		database:    database,
	}, nil
}

// withSession adapts fn to a cobra RunE. The session is closed and metrics are written
// after fn returns. The first error wins.
func withSession(newClient ClientFactory, fn func(ctx context.Context, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, newClient)
		if err != nil {
			return err
		}
		err = fn(cmd.Context(), s, args)
		if cerr := s.seq.Close(); err == nil {
			err = cerr
		}
		if s.metricsFile != "" {
			if merr := metrics.WriteTextfile(s.metricsFile); merr != nil {
				glog.Errorf("Unable to write metrics: %v", merr)
				if err == nil {
					err = merr
				}
			}
		}
		return err
	}
}

func (s *session) print(results ...provisioner.Result) {
	for _, r := range results {
		fmt.Fprintln(s.out, r.String())
	}
}

// step prints r and passes err through.
func (s *session) step(r provisioner.Result, err error) error {
	s.print(r)
	return err
}

// connect opens a session to the selected database.
func (s *session) connect(ctx context.Context) error {
	return s.step(s.seq.Connect(ctx, s.database))
}

// argOr returns args[i] when present, otherwise fallback. An empty result is an error.
func argOr(args []string, i int, fallback, name string) (string, error) {
	v := fallback
	if i < len(args) {
		v = args[i]
	}
	if v == "" {
		return "", errors.Errorf("%s unset: pass it as an argument or set it in the settings file", name)
	}
	return v, nil
}
