package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kappakkala/pgprovision/pkg/flags"
)

// NewSchemasCommand creates the schemas command.
func NewSchemasCommand(newClient ClientFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "Create, drop and prepare schemas.",
		Long:  "Create, drop and prepare schemas in the configured database.",
	}

	create := &cobra.Command{
		Use:   "create [NAME]",
		Short: "Create a schema in the configured database",
		Args:  cobra.MaximumNArgs(1),
		RunE: withSession(newClient, func(ctx context.Context, s *session, args []string) error {
			name, err := argOr(args, 0, s.cfg.Schema, "schema")
			if err != nil {
				return err
			}
			if err := s.connect(ctx); err != nil {
				return err
			}
			return s.step(s.seq.CreateSchema(ctx, name))
		}),
	}
	drop := &cobra.Command{
		Use:   "drop [NAME]",
		Short: "Drop a schema from the configured database",
		Args:  cobra.MaximumNArgs(1),
		RunE: withSession(newClient, func(ctx context.Context, s *session, args []string) error {
			name, err := argOr(args, 0, s.cfg.Schema, "schema")
			if err != nil {
				return err
			}
			if err := s.connect(ctx); err != nil {
				return err
			}
			return s.step(s.seq.DropSchema(ctx, name))
		}),
	}
	for _, c := range []*cobra.Command{create, drop} {
		c.Flags().String(flags.Database, "", "Database to connect to. Defaults to the settings file database")
	}

	prepare := &cobra.Command{
		Use:   "prepare [DATABASE [SCHEMA]]",
		Short: "Create a database and a schema inside it",
		Long:  "Create a database, connect to it and create a schema inside it. Existing objects are kept.",
		Args:  cobra.MaximumNArgs(2),
		RunE:  withSession(newClient, runPrepareSchema),
	}

	cmd.AddCommand(create, drop, prepare)
	return cmd
}

func runPrepareSchema(ctx context.Context, s *session, args []string) error {
	database, err := argOr(args, 0, s.cfg.Database, "database")
	if err != nil {
		return err
	}
	schema, err := argOr(args, 1, s.cfg.Schema, "schema")
	if err != nil {
		return err
	}
	if err := s.step(s.seq.Connect(ctx, "")); err != nil {
		return err
	}
	results, err := s.seq.PrepareSchema(ctx, database, schema)
	s.print(results...)
	return err
}
