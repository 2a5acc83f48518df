package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kappakkala/pgprovision/pkg/flags"
	"github.com/kappakkala/pgprovision/pkg/provisioner"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand(newClient ClientFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Empty and drop tables.",
		Long:  "Empty and drop tables in the configured database. SCHEMA and TABLE default to the settings file.",
	}
	empty := &cobra.Command{
		Use:   "empty [SCHEMA [TABLE]]",
		Short: "Remove every row from a table and keep its structure",
		Args:  cobra.MaximumNArgs(2),
		RunE: withSession(newClient, func(ctx context.Context, s *session, args []string) error {
			return runTableOperation(ctx, s, args, s.seq.EmptyTable)
		}),
	}
	drop := &cobra.Command{
		Use:   "drop [SCHEMA [TABLE]]",
		Short: "Drop a table if it exists",
		Args:  cobra.MaximumNArgs(2),
		RunE: withSession(newClient, func(ctx context.Context, s *session, args []string) error {
			return runTableOperation(ctx, s, args, s.seq.DropTable)
		}),
	}
	for _, c := range []*cobra.Command{empty, drop} {
		c.Flags().String(flags.Database, "", "Database to connect to. Defaults to the settings file database")
	}
	cmd.AddCommand(empty, drop)
	return cmd
}

type tableOperation func(ctx context.Context, schema, table string) (provisioner.Result, error)

func runTableOperation(ctx context.Context, s *session, args []string, op tableOperation) error {
	schema, err := argOr(args, 0, s.cfg.Schema, "schema")
	if err != nil {
		return err
	}
	table, err := argOr(args, 1, s.cfg.Table, "table")
	if err != nil {
		return err
	}
	if err := s.connect(ctx); err != nil {
		return err
	}
	return s.step(op(ctx, schema, table))
}
