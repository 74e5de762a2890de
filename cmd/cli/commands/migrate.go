package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// MigrateCmd creates the migrate command
func MigrateCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pg := app.Postgres()
			if pg == nil {
				return fmt.Errorf("migrate requires database.driver postgres, got %q", app.Cfg.Database.Driver)
			}
			applied, err := pg.RunMigrations(app.Ctx)
			if err != nil {
				return err
			}
			app.Logger.Info("Migrations applied", zap.Strings("files", applied))

			if len(applied) == 0 {
				fmt.Printf("\nDatabase is up to date.\n\n")
				return nil
			}
			fmt.Printf("\n✓ Applied %d migrations:\n", len(applied))
			for _, name := range applied {
				fmt.Printf("  ✓ %s\n", name)
			}
			fmt.Println()
			return nil
		},
	}
}
