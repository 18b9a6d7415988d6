package commands

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roasbeef/smaart/internal/web"
)

var (
	summarizeHours     int
	summarizeSources   []string
	summarizeMaxLength int
	summarizeHTML      bool
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <query>",
	Short: "Summarize recent content about a topic",
	Long: `Fetch recent content about the topic from the configured sources
and produce an AI summary. Long free-form input is summarized directly.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSummarize,
}

func init() {
	summarizeCmd.Flags().IntVar(&summarizeHours, "hours", 0,
		"Trailing content window in hours (default 24)")
	summarizeCmd.Flags().StringSliceVar(&summarizeSources, "sources",
		nil, "Allowed sources: twitter, duckduckgo, wikipedia")
	summarizeCmd.Flags().IntVar(&summarizeMaxLength, "max-length", 0,
		"Maximum summary length in words (default 150)")
	summarizeCmd.Flags().BoolVar(&summarizeHTML, "html", false,
		"Include an HTML rendering of the summary")
}

func runSummarize(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client := newClient()

	req := web.SummarizeRequest{
		Query:     strings.Join(args, " "),
		Hours:     summarizeHours,
		Sources:   summarizeSources,
		MaxLength: summarizeMaxLength,
	}
	if summarizeHTML {
		req.Render = "html"
	}

	var resp web.SummarizeResponse
	err := client.do(ctx, http.MethodPost, "/api/v1/summarize",
		req, &resp)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(resp)
	}

	fmt.Printf("Query: %s\n\n%s\n\n", resp.Query, resp.Summary)

	for name, count := range resp.Sources {
		fmt.Printf("Source: %s (%d items)\n", name, count)
	}
	if len(resp.Entities) > 0 {
		fmt.Printf("Entities: %s\n",
			strings.Join(resp.Entities, ", "))
	}
	fmt.Printf("Confidence: %.2f\n", resp.Confidence)
	fmt.Printf("Generated: %s\n",
		resp.GeneratedAt.Local().Format(time.RFC822))
	if resp.FromCache {
		fmt.Printf("Served from cache in %dms\n",
			resp.ProcessingTimeMS)
	} else {
		fmt.Printf("Generated in %dms\n", resp.ProcessingTimeMS)
	}

	return nil
}
