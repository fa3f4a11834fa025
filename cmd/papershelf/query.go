package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/papershelf/internal/domain/chat"
	queryuc "github.com/kailas-cloud/papershelf/internal/usecase/query"
)

var (
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question about the ingested papers",
	Long: `Embeds the question, retrieves the most similar chunks and asks the
language model to answer using only that context.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := requirePersistentStorage(cfg, "query"); err != nil {
		return err
	}

	if queryTopK > 0 {
		cfg.Retrieval.TopK = queryTopK
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.pipeline.Query(ctx, question)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return writeResultJSON(cmd.OutOrStdout(), res)
	}
	writeResultText(cmd.OutOrStdout(), res)
	return nil
}

type resultJSON struct {
	Query              string        `json:"query"`
	Answer             string        `json:"answer"`
	RetrievedDocuments []chat.Source `json:"retrieved_documents"`
}

func writeResultJSON(w io.Writer, res queryuc.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resultJSON{
		Query:              res.Query,
		Answer:             res.Answer,
		RetrievedDocuments: chat.SourcesFromResults(res.Documents),
	}); err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return nil
}

func writeResultText(w io.Writer, res queryuc.Result) {
	fmt.Fprintln(w, res.Answer)
	if len(res.Documents) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for i, src := range chat.SourcesFromResults(res.Documents) {
		title := src.Metadata["title"]
		if title == "" {
			title = src.Metadata["document_id"]
		}
		// Format: [N] Title (chunk i/n, similarity)
		fmt.Fprintf(w, "[%d] %s (chunk %s/%s, similarity %.3f)\n",
			i+1, title, src.Metadata["chunk_index"], src.Metadata["total_chunks"], 1-src.Distance)
	}
}
