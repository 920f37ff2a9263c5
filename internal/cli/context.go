package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/team-memory/internal/model"
	"github.com/rcliao/team-memory/internal/service"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context <project-id> [description]",
		Short: "Assemble a project's working context",
		Long: "Pack global knowledge, team knowledge, project decisions and recent project work " +
			"into a token budget, each tier ranked against the description.",
		Args: cobra.MinimumNArgs(1),
		Run:  runContext,
	}

	cmd.Flags().IntP("budget", "b", 0, "Max tokens in output (default: context.default_max_tokens)")
	cmd.Flags().String("category", "", "Boost memories of this category")
	cmd.Flags().Bool("include-deprecated", false, "Include deprecated memories")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	category, _ := cmd.Flags().GetString("category")
	includeDeprecated, _ := cmd.Flags().GetBool("include-deprecated")

	req := service.ContextRequest{
		ProjectID:         args[0],
		Query:             strings.Join(args[1:], " "),
		Category:          model.Category(category),
		IncludeDeprecated: includeDeprecated,
	}
	if cmd.Flags().Changed("budget") {
		budget, _ := cmd.Flags().GetInt("budget")
		req.MaxTokens = &budget
	}

	a, c := mustOpen(cmd)
	defer a.Close()

	res, err := a.svc.Context(cmd.Context(), c, req)
	if err != nil {
		exitErr("context", err)
	}

	if formatFlag != "text" {
		printJSON(res)
		return
	}
	tiers := []struct {
		name    string
		entries []model.Entry
	}{
		{"global knowledge", res.GlobalKnowledge},
		{"team knowledge", res.TeamKnowledge},
		{"project decisions", res.ProjectDecisions},
		{"recent work", res.ProjectRecent},
	}
	for _, t := range tiers {
		if len(t.entries) == 0 {
			continue
		}
		fmt.Printf("## %s\n", t.name)
		for _, e := range t.entries {
			fmt.Printf("- %s\n", e.Summary)
		}
		fmt.Println()
	}
	fmt.Printf("(%d/%d tokens)\n", res.TotalTokens, res.MaxTokens)
}
