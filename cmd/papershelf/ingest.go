package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/papershelf/internal/usecase/ingest"
)

var ingestNoProgress bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <path|glob>...",
	Short: "Ingest PDF papers into the library",
	Long: `Extracts text from PDF papers, splits it into overlapping chunks,
embeds them and stores them for retrieval.

Arguments may be files, directories (searched recursively for *.pdf) or
glob patterns such as "papers/**/*.pdf".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestNoProgress, "no-progress", false, "disable the progress bar")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	files, err := expandPDFPaths(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no PDF files matched")
	}

	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := requirePersistentStorage(cfg, "ingest"); err != nil {
		return err
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

	progress := newProgress(!ingestNoProgress && defaultProgressEnabled())
	progress.Start(len(files))

	var reports []ingest.Report
	var failed int
	for _, path := range files {
		rep, err := a.ingest.Ingest(ctx, path)
		progress.Increment()
		if err != nil {
			failed++
			logger.Error("Failed to ingest paper", zap.String("path", path), zap.Error(err))
			continue
		}
		reports = append(reports, rep)
	}
	progress.Finish()

	for _, rep := range reports {
		cmd.Printf("%s  %s (%s, %d pages, %d chunks)\n",
			rep.DocumentID, rep.Title, rep.Author, rep.PageCount, len(rep.ChunkIDs))
	}
	cmd.Printf("Ingested %d of %d papers\n", len(reports), len(files))

	if failed > 0 {
		return fmt.Errorf("%d papers failed to ingest", failed)
	}
	return nil
}

// expandPDFPaths resolves files, directories and doublestar patterns into a
// sorted, de-duplicated list of PDF paths.
func expandPDFPaths(args []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if !isPDF(p) {
			return
		}
		p = filepath.Clean(p)
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, arg := range args {
		pattern := arg
		if !hasMeta(arg) {
			info, err := os.Stat(arg)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", arg, err)
			}
			if !info.IsDir() {
				add(arg)
				continue
			}
			pattern = filepath.Join(arg, "**", "*")
		}

		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		for _, m := range matches {
			add(m)
		}
	}

	slices.Sort(out)
	return out, nil
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func hasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}
