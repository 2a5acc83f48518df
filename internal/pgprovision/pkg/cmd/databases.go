package cmd

import (
	"context"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewDatabasesCommand creates the databases command.
func NewDatabasesCommand(newClient ClientFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "databases",
		Short: "List, create and drop databases.",
		Long:  "List, create and drop databases. Every operation runs against the maintenance database.",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all databases on the server",
			Args:  cobra.NoArgs,
			RunE:  withSession(newClient, runListDatabases),
		},
		&cobra.Command{
			Use:   "create NAME",
			Short: "Create a database",
			Args:  cobra.ExactArgs(1),
			RunE:  withSession(newClient, runCreateDatabase),
		},
		&cobra.Command{
			Use:   "drop NAME",
			Short: "Drop a database",
			Args:  cobra.ExactArgs(1),
			RunE:  withSession(newClient, runDropDatabase),
		},
	)
	return cmd
}

func runListDatabases(ctx context.Context, s *session, _ []string) error {
	if err := s.step(s.seq.Connect(ctx, "")); err != nil {
		return err
	}
	names, err := s.seq.ListDatabases(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(s.out)
	table.Header("Database")
	for _, name := range names {
		if err := table.Append([]string{name}); err != nil {
			return err
		}
	}
	return table.Render()
}

func runCreateDatabase(ctx context.Context, s *session, args []string) error {
	if err := s.step(s.seq.Connect(ctx, "")); err != nil {
		return err
	}
	return s.step(s.seq.CreateDatabase(ctx, args[0]))
}

func runDropDatabase(ctx context.Context, s *session, args []string) error {
	return s.step(s.seq.DropDatabase(ctx, args[0]))
}
