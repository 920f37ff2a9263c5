package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/team-memory/internal/service"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats <project-id>",
		Short: "Show per scope/type counts for a project",
		Args:  cobra.ExactArgs(1),
		Run:   runStats,
	}

	catCmd := &cobra.Command{
		Use:   "categories",
		Short: "List memory categories",
		Run: func(cmd *cobra.Command, args []string) {
			printJSON(map[string]any{"categories": service.Categories()})
		},
	}

	RootCmd.AddCommand(cmd, catCmd)
}

func runStats(cmd *cobra.Command, args []string) {
	a, c := mustOpen(cmd)
	defer a.Close()

	stats, err := a.svc.Stats(cmd.Context(), c, args[0])
	if err != nil {
		exitErr("stats", err)
	}
	version, err := a.db.SchemaVersion(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}
	printJSON(map[string]any{
		"project_id":     stats.ProjectID,
		"stats":          stats.Stats,
		"driver":         a.db.Driver(),
		"schema_version": version,
	})
}
