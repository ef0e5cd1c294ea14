package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"clipdeck/catalog"
	"clipdeck/config"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// listCmd lists catalog clips
var listCmd = &cobra.Command{
	Use:   "list [QUERY]",
	Short: "List catalog clips",
	Long: `List the clips in the catalog, optionally filtered by a query matched
against keys, titles and tags. The catalog is read directly and no audio
device is opened.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	cat, err := catalog.Open(cfg.Board.Catalog)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	clips := cat.Clips()
	if len(args) == 1 {
		clips = cat.Search(args[0])
	}
	if len(clips) == 0 {
		fmt.Println("No clips found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tTITLE\tSOURCE\tSIZE\tTAGS")
	for _, clip := range clips {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			clip.Key, clip.Title, clip.Source(), clipSize(clip), strings.Join(clip.Tags, ","))
	}
	return w.Flush()
}

// clipSize reports the on-disk size of local clips. Remote clips show a dash.
func clipSize(clip catalog.Clip) string {
	if clip.URL != "" {
		return "-"
	}
	info, err := os.Stat(clip.File)
	if err != nil {
		return "?"
	}
	return humanize.Bytes(uint64(info.Size()))
}
