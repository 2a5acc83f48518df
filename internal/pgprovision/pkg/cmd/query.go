package cmd

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kappakkala/pgprovision/pkg/flags"
)

// NewQueryCommand creates the query command.
func NewQueryCommand(newClient ClientFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a SQL file against a database",
		Long:  "Run a SQL file against a database. The file defaults to sql_file from the settings file.",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().String(flags.File, "", "SQL file to run. Defaults to the settings file sql_file")
	cmd.Flags().String(flags.Database, "", "Database to connect to. Defaults to the settings file database")
	cmd.RunE = func(c *cobra.Command, args []string) error {
		file := flags.MustGetString(flags.File, c.Flags())
		return withSession(newClient, func(ctx context.Context, s *session, _ []string) error {
			return runQuery(ctx, s, file)
		})(c, args)
	}
	return cmd
}

func runQuery(ctx context.Context, s *session, file string) error {
	query, err := readScript(s, file)
	if err != nil {
		return err
	}
	if err := s.connect(ctx); err != nil {
		return err
	}
	return s.step(s.seq.RunScript(ctx, query))
}

// readScript reads file relative to the working directory, or the settings file sql_file when file is empty.
func readScript(s *session, file string) (string, error) {
	if file == "" {
		return s.cfg.ReadSQLFile()
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return "", errors.Wrapf(err, "reading %q", file)
	}
	return string(content), nil
}
