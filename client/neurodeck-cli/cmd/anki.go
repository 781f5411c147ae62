package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync [context]",
	Short: "Run a feedback sync pass against Anki for a context",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		payload, err := json.Marshal(map[string]string{"context": args[0]})
		if err != nil {
			log.Fatalf("Error creating JSON payload: %v", err)
		}

		var result struct {
			Outcomes []struct {
				CardID uint   `json:"card_id"`
				Status string `json:"status"`
				NoteID int64  `json:"note_id"`
				Reason string `json:"reason"`
			} `json:"outcomes"`
		}
		doJSON("POST", "/api/v1/anki/sync", "application/json", bytes.NewBuffer(payload), &result)

		for _, o := range result.Outcomes {
			line := fmt.Sprintf("card %d: %s", o.CardID, o.Status)
			if o.NoteID != 0 {
				line += fmt.Sprintf(" (note %d)", o.NoteID)
			}
			if o.Reason != "" {
				line += fmt.Sprintf(" (%s)", o.Reason)
			}
			fmt.Println(line)
		}
		fmt.Printf("Synced %d cards.\n", len(result.Outcomes))
	},
}

var decksCmd = &cobra.Command{
	Use:   "decks",
	Short: "List the decks available in the connected Anki instance",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var result struct {
			Decks []string `json:"decks"`
		}
		doJSON("GET", "/api/v1/anki/decks", "", nil, &result)

		for _, d := range result.Decks {
			fmt.Println(d)
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(decksCmd)
}
