package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pdf-inquiry/internal/progress"
	"github.com/ziadkadry99/pdf-inquiry/internal/walker"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file|dir|glob]...",
	Short: "Index and store PDF documents",
	Long: `Extracts, indexes and stores each PDF so it can be reopened later by
fingerprint. Directories are searched recursively; globs support **.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringSlice("exclude", nil, "glob patterns of files to skip")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	exclude, _ := cmd.Flags().GetStringSlice("exclude")

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	files, skipped, err := walker.Collect(walker.Config{
		Patterns:    args,
		Exclude:     exclude,
		MaxFileSize: int64(a.cfg.Server.MaxUploadMB) << 20,
	})
	if err != nil {
		return err
	}
	for _, s := range skipped {
		fmt.Fprintf(os.Stderr, "Skipping %s: %s\n", s.Path, s.Reason)
	}
	if len(files) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No PDF files found.")
		return nil
	}

	type outcome struct {
		name, fp string
		passages int
		err      error
	}
	outcomes := make([]outcome, 0, len(files))

	rep := progress.New(os.Stderr, "Ingesting")
	rep.Start(len(files))
	for _, f := range files {
		o := outcome{name: f.Name}
		data, err := os.ReadFile(f.Path)
		if err == nil {
			if r, ierr := a.rag.Ingest(ctx, data, f.Name); ierr != nil {
				err = ierr
			} else {
				o.fp, o.passages = string(r.Fingerprint), r.Passages
			}
		}
		o.err = err
		outcomes = append(outcomes, o)
		rep.Step(f.Name, o.err != nil)
	}
	rep.Finish()

	failed := 0
	out := cmd.OutOrStdout()
	for _, o := range outcomes {
		if o.err != nil {
			failed++
			fmt.Fprintf(out, "FAIL  %s: %v\n", o.name, o.err)
			continue
		}
		fmt.Fprintf(out, "OK    %s  %s  (%d passages)\n", o.fp, o.name, o.passages)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(files))
	}
	return nil
}
