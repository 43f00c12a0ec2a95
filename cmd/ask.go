package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pdf-inquiry/internal/rag"
)

var askCmd = &cobra.Command{
	Use:   "ask <pdf|fingerprint> [question]",
	Short: "Ask one question about a document",
	Long: `Answers a question from the most relevant passages of a document and
records the turn in the user's conversation. The document is either a PDF
path, which is ingested first, or the fingerprint of a stored document.
With --summary the question is omitted and a summary is generated instead.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().Bool("summary", false, "summarize the document instead of answering a question")
	askCmd.Flags().Bool("sources", false, "print the passages the answer was based on")
	askCmd.Flags().Bool("json", false, "output the reply as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	summary, _ := cmd.Flags().GetBool("summary")
	showSources, _ := cmd.Flags().GetBool("sources")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if !summary && len(args) < 2 {
		return fmt.Errorf("a question is required unless --summary is set")
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	fp, err := a.resolveDocument(ctx, args[0])
	if err != nil {
		return err
	}

	var reply *rag.Reply
	if summary {
		reply, err = a.rag.Summarize(ctx, currentUser(), fp)
	} else {
		reply, err = a.rag.Ask(ctx, currentUser(), fp, args[1])
	}
	if errors.Is(err, rag.ErrNoDocument) {
		fmt.Fprintln(cmd.OutOrStdout(), err.Error())
		return nil
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reply)
	}
	fmt.Fprintln(out, reply.Answer)
	if showSources {
		for i, src := range reply.Sources {
			fmt.Fprintf(out, "\n[%d] page %d (similarity %.3f)\n%s\n", i+1, src.Passage.Page, src.Similarity, src.Passage.Text)
		}
	}
	return nil
}
