package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/team-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Retrieve a memory",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	a, c := mustOpen(cmd)
	defer a.Close()

	e, err := a.svc.Get(cmd.Context(), c, args[0])
	if err != nil {
		exitErr("get", err)
	}
	printEntries(e, []model.Entry{*e})
}
