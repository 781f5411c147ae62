package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "neurodeck-cli",
	Short: "A CLI client to interact with the Neurodeck card service",
	Long:  `A command-line interface for generating flashcards from documents, browsing and evaluating them, and syncing feedback with Anki.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your CLI: %s", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:8080", "base URL of the card service")
}

// apiURL joins the configured server base URL with an API path.
func apiURL(path string) string {
	return strings.TrimRight(serverURL, "/") + path
}

// doJSON issues an HTTP request against the card service and decodes the JSON
// response into out (skipped when out is nil). Transport errors and non-2xx
// responses terminate the CLI with the server's error message.
func doJSON(method, path string, contentType string, body io.Reader, out interface{}) {
	req, err := http.NewRequest(method, apiURL(path), body)
	if err != nil {
		log.Fatalf("Error building request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Error contacting server: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Fatalf("Request failed (%d): %s", resp.StatusCode, readServerError(resp.Body))
	}
	if out == nil {
		return
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Fatalf("Error decoding response: %v", err)
	}
}

// readServerError extracts the "error" field the service attaches to failure
// responses, falling back to the raw body.
func readServerError(body io.Reader) string {
	raw, err := io.ReadAll(body)
	if err != nil {
		return err.Error()
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}

// cardView mirrors the card fields the service returns.
type cardView struct {
	ID         uint   `json:"id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Topic      string `json:"topic"`
	Context    string `json:"context"`
	Evaluation string `json:"evaluation"`
}

func printCards(cards []cardView) {
	for _, c := range cards {
		fmt.Printf("[%d] (%s) Q: %s\n    A: %s\n", c.ID, c.Evaluation, c.Question, c.Answer)
	}
}
