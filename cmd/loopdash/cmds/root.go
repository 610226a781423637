package cmds

import (
	"github.com/spf13/cobra"
)

func AddCommands(root *cobra.Command) error {
	iterations, err := newIterationsCmd()
	if err != nil {
		return err
	}

	root.AddCommand(newTuiCmd())
	root.AddCommand(newTailCmd())
	root.AddCommand(newEventsCmd())
	root.AddCommand(iterations)
	root.AddCommand(newFilterCmd())
	root.AddCommand(newLoginCmd())
	return nil
}
