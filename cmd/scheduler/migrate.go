package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/example/resource-scheduler/internal/persistence/sqlite"
	"github.com/example/resource-scheduler/internal/persistence/sqlite/migration"
)

func newMigrateCommand(c *cli) *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and print the schema status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.UsesMemoryStorage() {
				return errMemoryStorage
			}
			ctx := cmd.Context()

			store, err := sqlite.Open(migration.DefaultSQLiteConfig(c.cfg.SQLiteDSN), c.logger)
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			defer store.Close()

			if !statusOnly {
				if err := store.Migrate(ctx); err != nil {
					return fmt.Errorf("failed to apply migrations: %w", err)
				}
			}
			status, err := store.MigrationStatus(ctx)
			if err != nil {
				return fmt.Errorf("failed to read migration status: %w", err)
			}
			c.renderMigrationStatus(status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "only print the status")
	return cmd
}

func (c *cli) renderMigrationStatus(status migration.Status) {
	tw := table.NewWriter()
	tw.SetOutputMirror(c.out)
	tw.SetTitle("schema version " + status.CurrentVersion)
	tw.AppendHeader(table.Row{"Version", "State", "Applied At", "Took"})
	for _, m := range status.Applied {
		tw.AppendRow(table.Row{m.Version, "applied", m.AppliedAt.Format("2006-01-02 15:04:05"), m.ExecutionTime})
	}
	for _, m := range status.Pending {
		tw.AppendRow(table.Row{m.Version, "pending", "", ""})
	}
	tw.Render()
}
