package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/team-memory/internal/model"
	"github.com/rcliao/team-memory/internal/service"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories by keyword",
		Long:  "Rank readable memories by keyword overlap with the query, boosted by tag matches.",
		Run:   runSearch,
	}

	cmd.Flags().StringP("scope", "s", "", "Filter by scope")
	cmd.Flags().StringP("project", "p", "", "Filter by project or team id")
	cmd.Flags().String("type", "", "Filter by type")
	cmd.Flags().String("category", "", "Filter by category")
	cmd.Flags().StringP("tags", "t", "", "Filter by tags (comma-separated, any match)")
	cmd.Flags().Bool("include-deprecated", false, "Include deprecated memories")
	cmd.Flags().IntP("limit", "l", service.DefaultSearchLimit, "Max results")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	scope, _ := cmd.Flags().GetString("scope")
	scopeID, _ := cmd.Flags().GetString("project")
	typ, _ := cmd.Flags().GetString("type")
	category, _ := cmd.Flags().GetString("category")
	tagsStr, _ := cmd.Flags().GetString("tags")
	includeDeprecated, _ := cmd.Flags().GetBool("include-deprecated")
	limit, _ := cmd.Flags().GetInt("limit")

	a, c := mustOpen(cmd)
	defer a.Close()

	results, err := a.svc.Search(cmd.Context(), c, service.SearchRequest{
		Query:             strings.Join(args, " "),
		Scope:             model.Scope(scope),
		ScopeID:           scopeID,
		Type:              model.Type(typ),
		Category:          model.Category(category),
		Tags:              splitList(tagsStr),
		IncludeDeprecated: includeDeprecated,
		Limit:             limit,
	})
	if err != nil {
		exitErr("search", err)
	}
	if results == nil {
		results = []model.Entry{}
	}
	printEntries(results, results)
}
