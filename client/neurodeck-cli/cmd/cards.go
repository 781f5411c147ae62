package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/url"

	"github.com/spf13/cobra"
)

var contextsCmd = &cobra.Command{
	Use:   "contexts",
	Short: "List every stored context with its card count",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var result struct {
			Contexts []struct {
				Context   string `json:"context"`
				CardCount int64  `json:"card_count"`
			} `json:"contexts"`
		}
		doJSON("GET", "/api/v1/contexts", "", nil, &result)

		if len(result.Contexts) == 0 {
			fmt.Println("No contexts stored yet.")
			return
		}
		for _, c := range result.Contexts {
			fmt.Printf("%6d cards  %s\n", c.CardCount, c.Context)
		}
	},
}

var cardsCmd = &cobra.Command{
	Use:   "cards [context]",
	Short: "List the cards belonging to a context",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var result struct {
			Context string     `json:"context"`
			Cards   []cardView `json:"cards"`
		}
		doJSON("GET", "/api/v1/contexts/cards?context="+url.QueryEscape(args[0]), "", nil, &result)

		fmt.Printf("Context: %s (%d cards)\n\n", result.Context, len(result.Cards))
		printCards(result.Cards)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [context]",
	Short: "Delete a context together with its cards and stored media",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		doJSON("DELETE", "/api/v1/contexts?context="+url.QueryEscape(args[0]), "", nil, nil)
		fmt.Printf("Deleted context %s\n", args[0])
	},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [card-id] [evaluation]",
	Short: "Record an evaluation (liked, disliked, seen, not_evaluated) for a card",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		payload, err := json.Marshal(map[string]string{"evaluation": args[1]})
		if err != nil {
			log.Fatalf("Error creating JSON payload: %v", err)
		}
		doJSON("PUT", "/api/v1/cards/"+args[0]+"/evaluation", "application/json", bytes.NewBuffer(payload), nil)
		fmt.Printf("Card %s marked as %s\n", args[0], args[1])
	},
}

var similarCmd = &cobra.Command{
	Use:   "similar [card-id]",
	Short: "Find cards semantically similar to the given card",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var result struct {
			Matches []struct {
				CardID   int64   `json:"card_id"`
				Question string  `json:"question"`
				Score    float32 `json:"score"`
			} `json:"matches"`
		}
		doJSON("GET", "/api/v1/cards/"+args[0]+"/similar?top_k="+fmt.Sprint(similarTopK), "", nil, &result)

		if len(result.Matches) == 0 {
			fmt.Println("No similar cards found.")
			return
		}
		for _, m := range result.Matches {
			fmt.Printf("[%d] score %.3f  %s\n", m.CardID, m.Score, m.Question)
		}
	},
}

var similarTopK int

func init() {
	similarCmd.Flags().IntVar(&similarTopK, "top-k", 5, "number of matches to return")
	rootCmd.AddCommand(contextsCmd)
	rootCmd.AddCommand(cardsCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(similarCmd)
}
