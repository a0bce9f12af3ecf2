package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"libassist-backend/lib/scrapers/ebookcentral"
	"libassist-backend/lib/textutil"

	"github.com/spf13/cobra"
)

var outputDir string

func init() {
	downloadCmd.Flags().StringVarP(&outputDir, "output", "o", "downloads", "directory to place downloaded files in")
	rootCmd.AddCommand(downloadCmd)
}

var downloadCmd = &cobra.Command{
	Use:   "download <title> [author]",
	Short: "Searches for a book and downloads it if the portal offers a copy.",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		title := args[0]
		author := ""
		if len(args) > 1 {
			author = args[1]
		}

		res := client.SearchBook(cmd.Context(), title, author)
		switch {
		case res.Status == ebookcentral.StatusError:
			fmt.Fprintln(os.Stderr, res.Message)
			os.Exit(1)
		case res.Status == ebookcentral.StatusNotFound:
			fmt.Fprintf(os.Stderr, "no match for %q\n", title)
			os.Exit(1)
		case res.DownloadUrl == "":
			fmt.Fprintf(os.Stderr, "%q is view-only, open it at %s\n", res.Title, res.ViewUrl)
			os.Exit(1)
		}

		outputPath := filepath.Join(outputDir, textutil.CleanFilename(res.Title))
		outcome := client.DownloadBook(
			cmd.Context(), res.DownloadUrl, res.BookId, outputPath,
			func(received, total int64) {
				fmt.Fprintf(os.Stderr, "\r%s: %d%% (%d/%d bytes)", res.Title, received*100/total, received, total)
				if received == total {
					fmt.Fprintln(os.Stderr)
				}
			},
		)
		if !outcome.Success {
			fmt.Fprintln(os.Stderr, outcome.Message)
			os.Exit(1)
		}
		fmt.Printf("saved %s (%s)\n", outcome.FilePath, outcome.Format)
	},
}
