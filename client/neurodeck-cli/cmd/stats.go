package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus counters and the state of optional backends",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var result struct {
			Documents         int64            `json:"documents"`
			Cards             int64            `json:"cards"`
			Evaluations       map[string]int64 `json:"evaluations"`
			SyncStatus        map[string]int64 `json:"sync_status"`
			MediaBackend      string           `json:"media_backend"`
			SimilarityEnabled bool             `json:"similarity_enabled"`
			EventsEnabled     bool             `json:"events_enabled"`
		}
		doJSON("GET", "/api/v1/stats", "", nil, &result)

		fmt.Printf("Documents: %d\nCards:     %d\n", result.Documents, result.Cards)
		printCounter("Evaluations", result.Evaluations)
		printCounter("Sync status", result.SyncStatus)
		fmt.Printf("Media backend: %s\nSimilarity:    %t\nEvents:        %t\n",
			result.MediaBackend, result.SimilarityEnabled, result.EventsEnabled)
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the card service and its dependencies",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		// The health endpoint reports dependency state in the body even on
		// 503, so it bypasses the shared error handling.
		resp, err := http.Get(apiURL("/healthz"))
		if err != nil {
			log.Fatalf("Error contacting server: %v", err)
		}
		defer resp.Body.Close()

		var health map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			log.Fatalf("Error decoding response: %v", err)
		}

		keys := make([]string, 0, len(health))
		for k := range health {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%-12s %s\n", k, health[k])
		}
		if resp.StatusCode != http.StatusOK {
			fmt.Println("Service is degraded.")
			os.Exit(1)
		}
	},
}

func printCounter(title string, counts map[string]int64) {
	fmt.Printf("%s:\n", title)
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-14s %d\n", k, counts[k])
	}
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(healthCmd)
}
