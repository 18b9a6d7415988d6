package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/roasbeef/smaart/internal/trending"
)

var (
	trendingLimit int
	trendingHours int
)

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "List trending topics",
	Long:  `Display the most frequently resolved topics in a trailing window.`,
	RunE:  runTrending,
}

func init() {
	trendingCmd.Flags().IntVarP(&trendingLimit, "limit", "n", 10,
		"Maximum number of topics to display")
	trendingCmd.Flags().IntVar(&trendingHours, "hours", 24,
		"Trailing window in hours")
}

func runTrending(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client := newClient()

	path := fmt.Sprintf("/api/v1/trending?limit=%d&hours=%d",
		trendingLimit, trendingHours)

	var resp struct {
		Topics      []trending.Topic `json:"topics"`
		WindowHours int              `json:"window_hours"`
	}
	if err := client.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(resp)
	}

	if len(resp.Topics) == 0 {
		fmt.Printf("No topics resolved in the last %d hours.\n",
			resp.WindowHours)
		return nil
	}

	fmt.Printf("Trending topics (last %d hours):\n\n", resp.WindowHours)
	for i, topic := range resp.Topics {
		fmt.Printf("%2d. %s  (%d queries, sentiment %+.2f)\n",
			i+1, topic.Topic, topic.Count, topic.Sentiment)
	}

	return nil
}
