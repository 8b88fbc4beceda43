package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gogpu/overlay/gfx"
	_ "github.com/gogpu/overlay/gfx/gpu"
	_ "github.com/gogpu/overlay/gfx/software"
)

// NewBackendsCommand creates the backends command.
func NewBackendsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List graphics backends",
		Long: `List the registered graphics backends in selection order and whether
each can run here. This command has no host GPU device, so hardware backends
are listed as unavailable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPRIORITY\tAVAILABLE")
			for _, b := range gfx.Backends() {
				fmt.Fprintf(w, "%s\t%d\t%t\n", b.Name, b.Priority, b.Usable(gfx.Options{}))
			}
			return w.Flush()
		},
	}
}
