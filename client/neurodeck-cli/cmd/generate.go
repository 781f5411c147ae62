package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var generateFromURLFlag string

var generateCmd = &cobra.Command{
	Use:   "generate [file-path]",
	Short: "Generate flashcards from a document file or a URL",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if generateFromURLFlag != "" {
			generateFromURL(generateFromURLFlag)
			return
		}
		if len(args) != 1 {
			log.Fatal("Provide a file path, or use --url to generate from a web page.")
		}
		generateFromFile(args[0])
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateFromURLFlag, "url", "", "fetch the document from a URL instead of uploading a file")
	rootCmd.AddCommand(generateCmd)
}

// generationResult mirrors the response of the document endpoints.
type generationResult struct {
	Context   string     `json:"context"`
	Topic     string     `json:"topic"`
	Cards     []cardView `json:"cards"`
	FromCache bool       `json:"from_cache"`
}

func generateFromFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Error opening file: %v", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		log.Fatalf("Error preparing upload: %v", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		log.Fatalf("Error reading file: %v", err)
	}
	if err := writer.Close(); err != nil {
		log.Fatalf("Error finalizing upload: %v", err)
	}

	var result generationResult
	doJSON("POST", "/api/v1/documents/upload", writer.FormDataContentType(), &buf, &result)
	printGeneration(result)
}

func generateFromURL(pageURL string) {
	payload, err := json.Marshal(map[string]string{"url": pageURL})
	if err != nil {
		log.Fatalf("Error creating JSON payload: %v", err)
	}

	var result generationResult
	doJSON("POST", "/api/v1/documents/url", "application/json", bytes.NewBuffer(payload), &result)
	printGeneration(result)
}

func printGeneration(result generationResult) {
	origin := "generated"
	if result.FromCache {
		origin = "from cache"
	}
	fmt.Printf("Topic: %s (%d cards, %s)\nContext: %s\n\n", result.Topic, len(result.Cards), origin, result.Context)
	printCards(result.Cards)
}
