package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			version, err := st.MigrationVersion(ctx)
			if err != nil {
				return err
			}
			a.logger.Info("database migrated", "dialect", a.cfg.DBDialect, "version", version)
			return nil
		},
	}
}
