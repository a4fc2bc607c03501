package cmd

import (
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/criyle/go-binfmt/pkg/platform"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the registered binary formats in load order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := platform.New(cfg, hclog.NewNullLogger(), nil)
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Order", "Format", "Programs")
		for i, f := range p.Registry.Formats() {
			progs := "-"
			if f == p.Builtins {
				progs = strings.Join(p.Builtins.Programs(), " ")
			}
			table.Append(i + 1, f.Name(), progs)
		}
		return table.Render()
	},
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}
