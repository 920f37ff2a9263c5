package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/team-memory/internal/model"
	"github.com/rcliao/team-memory/internal/service"
	"github.com/rcliao/team-memory/internal/suggest"
)

func init() {
	cmd := &cobra.Command{
		Use:   "put [content]",
		Short: "Store a memory",
		Long:  "Store a memory. Content can be a positional arg or piped via stdin.",
		Run:   runPut,
	}

	cmd.Flags().StringP("scope", "s", "project", "Scope: global, team, project")
	cmd.Flags().StringP("project", "p", "", "Project id (project scope) or team id (team scope)")
	cmd.Flags().String("type", "work", "Type: decision, work, knowledge, todo")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")
	cmd.Flags().Float64("importance", 0.5, "Importance between 0 and 1")
	cmd.Flags().String("category", "", "Category (suggested from content when omitted)")
	cmd.Flags().String("summary", "", "Summary (default: first 200 characters)")
	cmd.Flags().String("file", "", "Source file the memory is about")
	cmd.Flags().String("meta", "", "JSON metadata")
	cmd.Flags().String("expires-at", "", "Expiry as RFC 3339 (default: per-type TTL)")
	cmd.Flags().String("supersedes", "", "Comma-separated ids this memory replaces")

	RootCmd.AddCommand(cmd)
}

func runPut(cmd *cobra.Command, args []string) {
	scope, _ := cmd.Flags().GetString("scope")
	scopeID, _ := cmd.Flags().GetString("project")
	typ, _ := cmd.Flags().GetString("type")
	tagsStr, _ := cmd.Flags().GetString("tags")
	category, _ := cmd.Flags().GetString("category")
	summary, _ := cmd.Flags().GetString("summary")
	file, _ := cmd.Flags().GetString("file")
	meta, _ := cmd.Flags().GetString("meta")
	expiresAt, _ := cmd.Flags().GetString("expires-at")
	supersedes, _ := cmd.Flags().GetString("supersedes")

	// Get content: positional arg first, then check stdin
	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}
	if strings.TrimSpace(content) == "" {
		exitErr("put", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	req := service.StoreRequest{
		Scope:      model.Scope(scope),
		ScopeID:    scopeID,
		Type:       model.Type(typ),
		Content:    strings.TrimSpace(content),
		Summary:    summary,
		Category:   model.Category(category),
		Tags:       splitList(tagsStr),
		Metadata:   parseMeta(meta),
		Supersedes: splitList(supersedes),
	}
	if cmd.Flags().Changed("importance") {
		v, _ := cmd.Flags().GetFloat64("importance")
		req.Importance = &v
	}
	if file != "" {
		if req.Metadata == nil {
			req.Metadata = model.Metadata{}
		}
		req.Metadata[suggest.MetadataFileKey] = file
	}
	if expiresAt != "" {
		t, err := time.Parse(time.RFC3339, expiresAt)
		if err != nil {
			exitErr("parse --expires-at", err)
		}
		req.ExpiresAt = &t
	}

	a, c := mustOpen(cmd)
	defer a.Close()

	res, err := a.svc.Store(cmd.Context(), c, req)
	if err != nil {
		exitErr("put", err)
	}
	printJSON(res)
}
