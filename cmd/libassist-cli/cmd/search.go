package cmd

import (
	"fmt"
	"os"

	"libassist-backend/lib/scrapers/ebookcentral"
	"libassist-backend/lib/textutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var listFile string

func init() {
	searchCmd.Flags().StringVarP(&listFile, "list", "l", "", `file with one book per line ("Title by Author", "Author - Title" or a bare title)`)
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search [title] [author]",
	Short: "Searches the portal catalog for one book or a list of books.",
	Run: func(cmd *cobra.Command, args []string) {
		requests := collectRequests(cmd, args)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Status", "Title", "Author", "Format", "Book ID", "Download"})

		for _, req := range requests {
			res := client.SearchBook(cmd.Context(), req.Title, req.Author)
			t.AppendRow(table.Row{
				res.Status, res.Title, res.Author, res.Format, res.BookId,
				downloadCell(res),
			})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

func collectRequests(cmd *cobra.Command, args []string) []textutil.BookRequest {
	if listFile != "" {
		contents, err := os.ReadFile(listFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		return textutil.ParseBookList(string(contents))
	}

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "provide a title (and optionally an author), or --list <file>")
		os.Exit(1)
	}
	author := ""
	if len(args) > 1 {
		author = args[1]
	}
	return []textutil.BookRequest{{
		Id:     textutil.BookId(args[0], author),
		Title:  args[0],
		Author: author,
	}}
}

func downloadCell(res ebookcentral.SearchResult) string {
	switch {
	case res.Status == ebookcentral.StatusError:
		return res.Message
	case res.DownloadUrl != "":
		return "yes"
	case res.Status == ebookcentral.StatusFound:
		return "view only"
	default:
		return ""
	}
}
