package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/structbio/bcifpipe/internal/observability"
	"github.com/structbio/bcifpipe/pkg/ident"
	"github.com/structbio/bcifpipe/pkg/idlist"
	"github.com/structbio/bcifpipe/pkg/shard"
)

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split an ID list into near-equal sublists",
	Long: `Split a master ID list into contiguous near-equal sublists, one file
per sublist, named <prefix>-<k>.txt.

The effective sublist count can differ from --n for small lists; every
input line lands in exactly one sublist either way.

Example:
  bcifpipe split --list ids.txt --n 8
  bcifpipe split --list ids.txt --n 0 --prefix shards/batch`,
	RunE: runSplit,
}

var (
	splitListPath string
	splitN        int
	splitPrefix   string
	splitCategory string
)

func init() {
	rootCmd.AddCommand(splitCmd)

	splitCmd.Flags().StringVarP(&splitListPath, "list", "l", "", "Path to ID list (required)")
	splitCmd.Flags().IntVarP(&splitN, "n", "n", 0, "Target sublist count (0 = one per CPU)")
	splitCmd.Flags().StringVar(&splitPrefix, "prefix", "", "Output filename prefix (default: list path without extension)")
	splitCmd.Flags().StringVar(&splitCategory, "category", string(ident.CategoryPDB), "Content category (pdb|csm|ihm)")

	_ = splitCmd.MarkFlagRequired("list")
}

func runSplit(_ *cobra.Command, _ []string) error {
	cat, err := ident.ParseCategory(splitCategory)
	if err != nil {
		return err
	}
	entries, err := idlist.Load(splitListPath, 0, cat)
	if err != nil {
		observability.CLILogger.Error("Failed to load ID list",
			zap.String("path", splitListPath),
			zap.Error(err))
		return err
	}

	prefix := splitPrefix
	if prefix == "" {
		prefix = strings.TrimSuffix(splitListPath, ".txt")
	}

	parts := shard.Split(entries, splitN)
	for k, part := range parts {
		path := fmt.Sprintf("%s-%d.txt", prefix, k)
		if err := idlist.Write(path, part); err != nil {
			return fmt.Errorf("write sublist %s: %w", path, err)
		}
		observability.CLILogger.Info("Wrote sublist",
			zap.String("path", path),
			zap.Int("entries", len(part)))
	}

	fmt.Printf("Split %d entries into %d sublists.\n", len(entries), len(parts))
	return nil
}
