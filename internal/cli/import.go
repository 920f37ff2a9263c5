package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/team-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import memories from JSON",
		Long:  "Import memories from JSON (stdin or file). Accepts the object produced by export or a bare array.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	var (
		data []byte
		err  error
	)
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read input", err)
	}

	memories, err := decodeImport(data)
	if err != nil {
		exitErr("parse json", err)
	}

	a, c := mustOpen(cmd)
	defer a.Close()

	res, err := a.svc.Import(cmd.Context(), c, memories)
	if err != nil {
		exitErr("import", err)
	}
	printJSON(res)
}

// decodeImport accepts {"memories": [...]} or [...].
func decodeImport(data []byte) ([]model.Memory, error) {
	data = bytes.TrimSpace(data)
	var memories []model.Memory
	if len(data) > 0 && data[0] == '[' {
		err := json.Unmarshal(data, &memories)
		return memories, err
	}
	var wrapped struct {
		Memories []model.Memory `json:"memories"`
	}
	err := json.Unmarshal(data, &wrapped)
	return wrapped.Memories, err
}
