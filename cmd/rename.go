package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
)

var renameCmd = &cobra.Command{
	Use:   "rename <fingerprint> <name...>",
	Short: "Rename a conversation",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		fp, err := fingerprint.Parse(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		ok, err := a.rag.Rename(ctx, currentUser(), fp, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintln(cmd.OutOrStdout(), "✅ Conversation renamed successfully")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renameCmd)
}
