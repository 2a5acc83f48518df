package cmd

import (
	"context"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/kappakkala/pgprovision/pkg/flags"
	"github.com/kappakkala/pgprovision/pkg/transfer"
)

type copyOptions struct {
	input    string
	truncate bool
	prepare  bool
}

// NewCopyCommand creates the copy command.
func NewCopyCommand(newClient ClientFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Load an exported time-series CSV into the configured table",
		Long: `Load an InfluxDB CSV export (annotated or plain) into schema.table from the settings file.
Only the settings file columns are loaded when they are set. When sql_file is set it runs after the load.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().String(flags.Input, "", "CSV export to load")
	cmd.Flags().Bool(flags.Truncate, false, "Empty the table before loading")
	cmd.Flags().Bool(flags.Prepare, false, "Create the database and schema before loading")
	flags.MarkFlagRequired(flags.Input, cmd)

	cmd.RunE = func(c *cobra.Command, args []string) error {
		opts := copyOptions{
			input:    flags.MustGetDefinedString(flags.Input, c.Flags()),
			truncate: flags.MustGetBool(flags.Truncate, c.Flags()),
			prepare:  flags.MustGetBool(flags.Prepare, c.Flags()),
		}
		return withSession(newClient, func(ctx context.Context, s *session, _ []string) error {
			return runCopy(ctx, s, opts)
		})(c, args)
	}
	return cmd
}

func runCopy(ctx context.Context, s *session, opts copyOptions) error {
	schema, err := argOr(nil, 0, s.cfg.Schema, "schema")
	if err != nil {
		return err
	}
	table, err := argOr(nil, 0, s.cfg.Table, "table")
	if err != nil {
		return err
	}
	frame, err := transfer.ReadCSVFile(opts.input)
	if err != nil {
		return err
	}
	if len(s.cfg.Columns) > 0 {
		if frame, err = frame.Select(s.cfg.Columns...); err != nil {
			return err
		}
	}
	glog.V(1).Infof("Read %d rows with columns %v from %s", frame.Len(), frame.Columns, opts.input)

	if opts.prepare {
		database, err := argOr(nil, 0, s.database, "database")
		if err != nil {
			return err
		}
		if err := s.step(s.seq.Connect(ctx, "")); err != nil {
			return err
		}
		results, err := s.seq.PrepareSchema(ctx, database, schema)
		s.print(results...)
		if err != nil {
			return err
		}
	} else if err := s.connect(ctx); err != nil {
		return err
	}

	if err := s.step(s.seq.LoadFrame(ctx, schema, table, frame, opts.truncate)); err != nil {
		return err
	}
	if s.cfg.SQLFile == "" {
		return nil
	}
	query, err := s.cfg.ReadSQLFile()
	if err != nil {
		return err
	}
	return s.step(s.seq.RunScript(ctx, query))
}
