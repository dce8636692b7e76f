package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	batchOpts    decodeOptions
	batchWorkers int
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>...",
	Short: "Scan the code of several files in parallel",
	Long: `batch scans the code section of every file with its own decoder and
reports how many instructions decode before the first failure.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batchOpts.resolve(cmd)
		workers := batchWorkers
		if !cmd.Flags().Changed("workers") && cfg.Workers > 0 {
			workers = cfg.Workers
		}
		return runBatch(cmd.OutOrStdout(), args, batchOpts, workers)
	},
}

func init() {
	f := batchCmd.Flags()
	f.Uint64Var(&batchOpts.Limit, "limit", 0, "maximum bytes to scan per file (0 for all)")
	f.StringVar(&batchOpts.Section, "section", "", "ELF section to scan")
	f.StringVar(&batchOpts.Symbol, "symbol", "", "ELF function to scan")
	f.IntVarP(&batchWorkers, "workers", "j", 4, "files decoded in parallel")
	rootCmd.AddCommand(batchCmd)
}

type batchResult struct {
	lang  string
	insts int
	bytes uint64
	size  int
}

// runBatch gives every file its own Decompiler; the handles share nothing
// and run concurrently. Results are printed in argument order.
func runBatch(w io.Writer, files []string, o decodeOptions, workers int) error {
	results := make([]batchResult, len(files))
	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, path := range files {
		g.Go(func() error {
			r, err := scanFile(path, o)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, r := range results {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%d instructions\t%d/%d bytes\n",
			files[i], r.lang, r.insts, r.bytes, r.size); err != nil {
			return err
		}
	}
	return nil
}

func scanFile(path string, o decodeOptions) (batchResult, error) {
	in, err := loadInput(path, o)
	if err != nil {
		return batchResult{}, err
	}
	defer in.Close()
	d, err := newDecompiler(in.lang, o)
	if err != nil {
		return batchResult{}, err
	}
	if err := d.Reset(in.base, in.data); err != nil {
		return batchResult{}, err
	}
	s, n, err := d.Disassemble(in.base, o.Limit)
	if err != nil {
		return batchResult{}, err
	}
	slog.Debug("Scanned file", "path", path, "instructions", len(s), "bytes", n)
	return batchResult{lang: d.Language().ID(), insts: len(s), bytes: n, size: len(in.data)}, nil
}
