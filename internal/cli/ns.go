package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/team-memory/internal/model"
)

func init() {
	projectsCmd := &cobra.Command{
		Use:   "projects",
		Short: "Project listing and membership",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List projects you can read",
		Run:   runProjectsList,
	}

	suggestCmd := &cobra.Command{
		Use:   "suggest <name>",
		Short: "Find existing project ids similar to a name",
		Args:  cobra.ExactArgs(1),
		Run:   runProjectsSuggest,
	}

	membersCmd := &cobra.Command{
		Use:   "members <project-id>",
		Short: "List project members",
		Args:  cobra.ExactArgs(1),
		Run:   runProjectsMembers,
	}

	addMemberCmd := &cobra.Command{
		Use:   "add-member <project-id> <user-id>",
		Short: "Grant a user a role in a project",
		Args:  cobra.ExactArgs(2),
		Run:   runProjectsAddMember,
	}
	addMemberCmd.Flags().String("role", string(model.RoleMember), "Role: admin, member, viewer")

	projectsCmd.AddCommand(listCmd, suggestCmd, membersCmd, addMemberCmd)
	RootCmd.AddCommand(projectsCmd)
}

func runProjectsList(cmd *cobra.Command, args []string) {
	a, c := mustOpen(cmd)
	defer a.Close()

	projects, err := a.svc.Projects(cmd.Context(), c)
	if err != nil {
		exitErr("list projects", err)
	}
	if formatFlag == "text" {
		for _, p := range projects {
			fmt.Printf("%s\t%d memories\t%d decisions\n", p.ProjectID, p.MemoryCount, p.DecisionCount)
		}
		return
	}
	printJSON(map[string]any{"projects": projects, "count": len(projects)})
}

func runProjectsSuggest(cmd *cobra.Command, args []string) {
	a, c := mustOpen(cmd)
	defer a.Close()

	res, err := a.svc.SuggestProjects(cmd.Context(), c, args[0])
	if err != nil {
		exitErr("suggest projects", err)
	}
	printJSON(res)
}

func runProjectsMembers(cmd *cobra.Command, args []string) {
	a, c := mustOpen(cmd)
	defer a.Close()

	members, err := a.svc.ListMembers(cmd.Context(), c, args[0])
	if err != nil {
		exitErr("list members", err)
	}
	printJSON(map[string]any{"project_id": args[0], "members": members})
}

func runProjectsAddMember(cmd *cobra.Command, args []string) {
	role, _ := cmd.Flags().GetString("role")

	a, c := mustOpen(cmd)
	defer a.Close()

	m, err := a.svc.AddMember(cmd.Context(), c, args[0], args[1], model.Role(role))
	if err != nil {
		exitErr("add member", err)
	}
	printJSON(m)
}
