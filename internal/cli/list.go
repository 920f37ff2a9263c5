package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/team-memory/internal/service"
)

func init() {
	todosCmd := &cobra.Command{
		Use:   "todos <project-id> <owner>",
		Short: "List todos assigned to an owner",
		Args:  cobra.ExactArgs(2),
		Run:   runTodos,
	}
	todosCmd.Flags().String("status", service.TodoPending, "Status filter: pending, done, all")

	tagsCmd := &cobra.Command{
		Use:   "tags <scope-id>",
		Short: "Count tag usage in a project or team",
		Args:  cobra.ExactArgs(1),
		Run:   runTags,
	}
	tagsCmd.Flags().Bool("keys-only", false, "Only output tag names")

	RootCmd.AddCommand(todosCmd, tagsCmd)
}

func runTodos(cmd *cobra.Command, args []string) {
	status, _ := cmd.Flags().GetString("status")

	a, c := mustOpen(cmd)
	defer a.Close()

	todos, err := a.svc.Todos(cmd.Context(), c, args[0], args[1], status)
	if err != nil {
		exitErr("todos", err)
	}
	printEntries(map[string]any{"project_id": args[0], "owner": args[1], "todos": todos, "count": len(todos)}, todos)
}

func runTags(cmd *cobra.Command, args []string) {
	keysOnly, _ := cmd.Flags().GetBool("keys-only")

	a, c := mustOpen(cmd)
	defer a.Close()

	tags, err := a.svc.Tags(cmd.Context(), c, args[0])
	if err != nil {
		exitErr("tags", err)
	}
	if keysOnly {
		for _, t := range tags {
			fmt.Println(t.Tag)
		}
		return
	}
	printJSON(map[string]any{"scope_id": args[0], "tags": tags, "total": len(tags)})
}
