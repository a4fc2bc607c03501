package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols <file>",
	Short: "Check an export file and print its symbols",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tab, err := loadExports(args[0])
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Name", "Value")
		for _, s := range tab.Sorted() {
			table.Append(s.Name, fmt.Sprint(s.Value))
		}
		return table.Render()
	},
}

func init() {
	rootCmd.AddCommand(symbolsCmd)
}
