package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var batchFlags struct {
	output    string
	format    string
	jobs      int
	keepGoing bool
}

var batchCmd = &cobra.Command{
	Use:   "batch <bundle.json>...",
	Short: "Build many bundles concurrently",
	Long: `Batch builds every bundle argument (directories are searched for *.json)
into the output directory. Builds run concurrently and share no state.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.StringVarP(&batchFlags.output, "output", "o", ".", "output directory")
	f.StringVarP(&batchFlags.format, "format", "f", "glb", "obj, stl, gltf or glb")
	f.IntVarP(&batchFlags.jobs, "jobs", "j", runtime.NumCPU(), "concurrent builds")
	f.BoolVarP(&batchFlags.keepGoing, "keep-going", "k", false, "build remaining bundles after a failure")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	inputs, err := expandInputs(args)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(batchFlags.output, 0755); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(batchFlags.jobs, 1))
	outputs := make([]string, len(inputs))
	failed := make([]error, len(inputs))
	for i, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := loadBundle(in)
			if err == nil {
				stem := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
				outputs[i], err = buildBundle(b, stem, batchFlags.output+string(filepath.Separator), batchFlags.format)
			}
			if err != nil {
				err = fmt.Errorf("%s: %w", in, err)
				if batchFlags.keepGoing {
					log.Error("build failed", zap.Error(err))
					failed[i] = err
					return nil
				}
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	var nfail int
	for i, out := range outputs {
		if failed[i] != nil {
			nfail++
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}
	if nfail > 0 {
		return fmt.Errorf("%d of %d builds failed", nfail, len(inputs))
	}
	return nil
}

// expandInputs replaces directory arguments with the JSON files they hold.
func expandInputs(args []string) ([]string, error) {
	var inputs []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			inputs = append(inputs, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.json"))
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, matches...)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no bundles found in %s", strings.Join(args, ", "))
	}
	return inputs, nil
}
