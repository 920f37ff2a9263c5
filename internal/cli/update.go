package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/team-memory/internal/model"
	"github.com/rcliao/team-memory/internal/service"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a memory's summary, importance, category, tags or metadata",
		Long:  "Edit a memory in place. Only the flags you pass are changed; content is immutable.",
		Args:  cobra.ExactArgs(1),
		Run:   runUpdate,
	}

	cmd.Flags().String("summary", "", "New summary")
	cmd.Flags().Float64("importance", 0, "New importance between 0 and 1")
	cmd.Flags().String("category", "", "New category")
	cmd.Flags().StringP("tags", "t", "", "Replace tags (comma-separated)")
	cmd.Flags().String("add-tags", "", "Tags to add (comma-separated)")
	cmd.Flags().String("remove-tags", "", "Tags to remove (comma-separated)")
	cmd.Flags().String("meta", "", "JSON metadata merged into the existing metadata")

	RootCmd.AddCommand(cmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	var patch service.UpdateRequest
	flags := cmd.Flags()
	if flags.Changed("summary") {
		v, _ := flags.GetString("summary")
		patch.Summary = &v
	}
	if flags.Changed("importance") {
		v, _ := flags.GetFloat64("importance")
		patch.Importance = &v
	}
	if flags.Changed("category") {
		v, _ := flags.GetString("category")
		patch.Category = model.Category(v)
	}
	if flags.Changed("tags") {
		v, _ := flags.GetString("tags")
		patch.Tags = splitList(v)
		if patch.Tags == nil {
			patch.Tags = []string{}
		}
	}
	addTags, _ := flags.GetString("add-tags")
	removeTags, _ := flags.GetString("remove-tags")
	meta, _ := flags.GetString("meta")
	patch.AddTags = splitList(addTags)
	patch.RemoveTags = splitList(removeTags)
	patch.Metadata = parseMeta(meta)

	a, c := mustOpen(cmd)
	defer a.Close()

	e, err := a.svc.Update(cmd.Context(), c, args[0], patch)
	if err != nil {
		exitErr("update", err)
	}
	printJSON(e)
}
