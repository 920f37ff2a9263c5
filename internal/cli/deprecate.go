package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	deprecateCmd := &cobra.Command{
		Use:   "deprecate <id>",
		Short: "Retire a memory from context and search",
		Args:  cobra.ExactArgs(1),
		Run:   runDeprecate,
	}
	deprecateCmd.Flags().String("superseded-by", "", "Id of the memory that replaces it")

	restoreCmd := &cobra.Command{
		Use:   "restore <id>",
		Short: "Undo a deprecation",
		Args:  cobra.ExactArgs(1),
		Run:   runRestore,
	}

	RootCmd.AddCommand(deprecateCmd, restoreCmd)
}

func runDeprecate(cmd *cobra.Command, args []string) {
	supersededBy, _ := cmd.Flags().GetString("superseded-by")

	a, c := mustOpen(cmd)
	defer a.Close()

	m, err := a.svc.Deprecate(cmd.Context(), c, args[0], supersededBy)
	if err != nil {
		exitErr("deprecate", err)
	}
	printJSON(map[string]any{"id": m.ID, "deprecated": m.Deprecated, "superseded_by": m.SupersededBy})
}

func runRestore(cmd *cobra.Command, args []string) {
	a, c := mustOpen(cmd)
	defer a.Close()

	m, err := a.svc.Restore(cmd.Context(), c, args[0])
	if err != nil {
		exitErr("restore", err)
	}
	printJSON(map[string]any{"id": m.ID, "deprecated": m.Deprecated})
}
