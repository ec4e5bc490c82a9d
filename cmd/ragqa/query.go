package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ragqa/internal/app"
	"ragqa/internal/domain"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer a single question and print the JSON response",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

var queryImage string

func init() {
	queryCmd.Flags().StringVar(&queryImage, "image", "", "Path to an image file to attach")
}

func runQuery(cmd *cobra.Command, args []string) error {
	q := domain.Query{Question: args[0]}
	if queryImage != "" {
		data, err := os.ReadFile(queryImage)
		if err != nil {
			return fmt.Errorf("reading image: %w", err)
		}
		q.Image = base64.StdEncoding.EncodeToString(data)
	}

	a, err := app.Load(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ans, err := a.Service.Answer(cmd.Context(), q)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(ans)
}
