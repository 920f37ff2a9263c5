package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/team-memory/internal/model"
	"github.com/rcliao/team-memory/internal/store"
)

func init() {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage teams, users and API keys (admin key required)",
	}

	teamCmd := &cobra.Command{Use: "team", Short: "Manage teams"}
	teamCreate := &cobra.Command{
		Use:   "create <id>",
		Short: "Create a team",
		Args:  cobra.ExactArgs(1),
		Run:   runTeamCreate,
	}
	teamCreate.Flags().String("name", "", "Display name (default: id)")
	teamList := &cobra.Command{
		Use:   "list",
		Short: "List teams",
		Run:   runTeamList,
	}
	teamCmd.AddCommand(teamCreate, teamList)

	userCmd := &cobra.Command{Use: "user", Short: "Manage users"}
	userCreate := &cobra.Command{
		Use:   "create <id>",
		Short: "Create a user and print their API key",
		Args:  cobra.ExactArgs(1),
		Run:   runUserCreate,
	}
	userCreate.Flags().String("team", "", "Team id")
	userCreate.Flags().String("role", string(model.RoleMember), "Role: admin, member, viewer")
	userList := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Run:   runUserList,
	}
	userRotate := &cobra.Command{
		Use:   "rotate-key <id>",
		Short: "Issue a new API key, revoking the old one",
		Args:  cobra.ExactArgs(1),
		Run:   runUserRotate,
	}
	userCmd.AddCommand(userCreate, userList, userRotate)

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Show audit log entries, newest first",
		Run:   runAudit,
	}
	auditCmd.Flags().String("user", "", "Filter by user id")
	auditCmd.Flags().String("action", "", "Filter by action")
	auditCmd.Flags().IntP("limit", "l", 100, "Max entries")

	adminCmd.AddCommand(teamCmd, userCmd, auditCmd)
	RootCmd.AddCommand(adminCmd)
}

func runTeamCreate(cmd *cobra.Command, args []string) {
	name, _ := cmd.Flags().GetString("name")

	a, c := mustOpen(cmd)
	defer a.Close()

	team, err := a.svc.CreateTeam(cmd.Context(), c, args[0], name)
	if err != nil {
		exitErr("create team", err)
	}
	printJSON(team)
}

func runTeamList(cmd *cobra.Command, args []string) {
	a, c := mustOpen(cmd)
	defer a.Close()

	teams, err := a.svc.ListTeams(cmd.Context(), c)
	if err != nil {
		exitErr("list teams", err)
	}
	printJSON(map[string]any{"teams": teams})
}

func runUserCreate(cmd *cobra.Command, args []string) {
	team, _ := cmd.Flags().GetString("team")
	role, _ := cmd.Flags().GetString("role")

	a, c := mustOpen(cmd)
	defer a.Close()

	key, err := a.svc.CreateUser(cmd.Context(), c, args[0], team, model.Role(role))
	if err != nil {
		exitErr("create user", err)
	}
	printJSON(key)
}

func runUserList(cmd *cobra.Command, args []string) {
	a, c := mustOpen(cmd)
	defer a.Close()

	users, err := a.svc.ListUsers(cmd.Context(), c)
	if err != nil {
		exitErr("list users", err)
	}
	printJSON(map[string]any{"users": users})
}

func runUserRotate(cmd *cobra.Command, args []string) {
	a, c := mustOpen(cmd)
	defer a.Close()

	key, err := a.svc.RegenerateKey(cmd.Context(), c, args[0])
	if err != nil {
		exitErr("rotate key", err)
	}
	printJSON(key)
}

func runAudit(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	action, _ := cmd.Flags().GetString("action")
	limit, _ := cmd.Flags().GetInt("limit")

	a, c := mustOpen(cmd)
	defer a.Close()

	logs, err := a.svc.AuditLogs(cmd.Context(), c, store.AuditFilter{UserID: user, Action: action, Limit: limit})
	if err != nil {
		exitErr("audit", err)
	}
	printJSON(map[string]any{"logs": logs, "count": len(logs)})
}
