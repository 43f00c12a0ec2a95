package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
)

var historyCmd = &cobra.Command{
	Use:   "history [fingerprint]",
	Short: "List conversations, or show the turns of one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().Bool("json", false, "output as JSON")
	historyCmd.Flags().Bool("documents", false, "list stored documents instead of conversations")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jsonOutput, _ := cmd.Flags().GetBool("json")
	documents, _ := cmd.Flags().GetBool("documents")

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if documents {
		docs, err := a.rag.Documents(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return enc.Encode(docs)
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "FINGERPRINT\tFILENAME\tSIZE\tSTORED")
		for _, d := range docs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.Fingerprint, d.Filename, d.Size, d.CreatedAt.Local().Format("Jan 02, 03:04 PM"))
		}
		return tw.Flush()
	}

	if len(args) == 1 {
		fp, err := fingerprint.Parse(args[0])
		if err != nil {
			return err
		}
		tr, err := a.rag.Transcript(ctx, currentUser(), fp)
		if err != nil {
			return err
		}
		if jsonOutput {
			return enc.Encode(tr.Turns)
		}
		fmt.Fprintf(out, "%s\n\n", tr.Name)
		for _, t := range tr.Turns {
			ts := t.Timestamp.Local().Format("03:04 PM")
			fmt.Fprintf(out, "🧍 %s  %s\n🤖 %s\n\n", ts, t.Question, t.Answer)
		}
		return nil
	}

	convs, err := a.rag.Conversations(ctx, currentUser())
	if err != nil {
		return err
	}
	if jsonOutput {
		return enc.Encode(convs)
	}
	if len(convs) == 0 {
		fmt.Fprintln(out, "No conversations yet.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FINGERPRINT\tNAME\tTURNS\tLAST ACTIVE")
	for _, c := range convs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.Fingerprint.Short(), sidebarName(c.Name), c.Turns, c.LastActive.Local().Format("Jan 02, 03:04 PM"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "\nUse the full fingerprint from `pdfqa history --json` to open a conversation.")
	return nil
}

// sidebarName shortens long conversation names to 30 characters.
func sidebarName(name string) string {
	r := []rune(name)
	if len(r) > 30 {
		return string(r[:30]) + "..."
	}
	return name
}
