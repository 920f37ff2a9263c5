package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "Export memories as JSON",
		Long:  "Export a project's memories, deprecated ones included, together with global memories.",
		Args:  cobra.ExactArgs(1),
		Run:   runExport,
	}

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	a, c := mustOpen(cmd)
	defer a.Close()

	exp, err := a.svc.Export(cmd.Context(), c, args[0])
	if err != nil {
		exitErr("export", err)
	}
	printJSON(exp)
}
