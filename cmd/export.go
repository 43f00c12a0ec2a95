package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
	"github.com/ziadkadry99/pdf-inquiry/internal/rag"
)

var exportCmd = &cobra.Command{
	Use:   "export <fingerprint>",
	Short: "Export a conversation as paginated text or XLSX",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().String("format", "txt", "export format: txt or xlsx")
	exportCmd.Flags().StringP("output", "o", "", "output file or directory (default: chat_export_<timestamp> in the current directory); - for stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	formatStr, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	fp, err := fingerprint.Parse(args[0])
	if err != nil {
		return err
	}
	format, err := rag.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var buf bytes.Buffer
	name, err := a.rag.Export(ctx, &buf, currentUser(), fp, format)
	if err != nil {
		return err
	}

	if output == "-" {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	path := name
	if output != "" {
		path = output
		if info, err := os.Stat(output); err == nil && info.IsDir() {
			path = filepath.Join(output, name)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
	return nil
}
