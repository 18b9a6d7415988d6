package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check daemon health",
	Long:  `Query the daemon's health endpoint and display component state.`,
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client := newClient()

	var resp struct {
		Status        string `json:"status"`
		Time          string `json:"time"`
		UptimeSeconds int    `json:"uptime_seconds"`
		Inference     struct {
			Capacity int `json:"capacity"`
			InUse    int `json:"in_use"`
		} `json:"inference"`
		Trending struct {
			Status          string `json:"status"`
			ResolvedQueries int    `json:"resolved_queries"`
		} `json:"trending"`
	}
	err := client.do(ctx, http.MethodGet, "/api/v1/health", nil, &resp)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(resp)
	}

	fmt.Printf("Status: %s (up %ds)\n", resp.Status, resp.UptimeSeconds)
	fmt.Printf("Inference: %d/%d slots in use\n",
		resp.Inference.InUse, resp.Inference.Capacity)
	if resp.Trending.Status != "" {
		fmt.Printf("Trending: %s, %d queries recorded\n",
			resp.Trending.Status, resp.Trending.ResolvedQueries)
	}

	return nil
}
