package main

import (
	"fmt"

	"waitlist_contest/internal/db"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("apply", false, "Apply the migrations instead of listing them")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "List or apply the embedded schema migrations",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	apply, _ := cmd.Flags().GetBool("apply")
	out := cmd.OutOrStdout()

	if !apply {
		names, err := db.Migrations()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
		return nil
	}

	pool, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer pool.Close()

	return db.Migrate(cmd.Context(), pool, func(name string) {
		fmt.Fprintf(out, "applied %s\n", name)
	})
}
