package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(detailsCmd)
}

var detailsCmd = &cobra.Command{
	Use:   "details <docID>",
	Short: "Prints the catalog detail page of a single document.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		details, err := client.GetBookDetails(cmd.Context(), args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendRow(table.Row{"Title", details.Title})
		t.AppendRow(table.Row{"Author", details.Author})
		for key, value := range details.Metadata {
			t.AppendRow(table.Row{key, value})
		}
		if details.DownloadAvailable {
			t.AppendRow(table.Row{"Download", details.DownloadUrl})
		} else {
			t.AppendRow(table.Row{"Download", "not available"})
		}
		t.AppendRow(table.Row{"View", details.ViewUrl})
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
