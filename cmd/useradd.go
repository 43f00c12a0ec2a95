package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pdf-inquiry/internal/auth"
)

var useraddCmd = &cobra.Command{
	Use:   "useradd [username]",
	Short: "Register a user for the HTTP API",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runUseradd,
}

func init() {
	rootCmd.AddCommand(useraddCmd)
}

func runUseradd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	required := func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("required")
		}
		return nil
	}
	ask := func(label string, mask bool) (string, error) {
		p := promptui.Prompt{Label: label, Validate: required}
		if mask {
			p.Mask = '*'
		}
		v, err := p.Run()
		if err != nil {
			return "", fmt.Errorf("%s: %w", strings.ToLower(label), err)
		}
		return v, nil
	}

	var (
		req auth.Signup
		err error
	)
	if len(args) == 1 {
		req.Username = args[0]
	} else if req.Username, err = ask("Username", false); err != nil {
		return err
	}
	if req.FirstName, err = ask("First name", false); err != nil {
		return err
	}
	if req.LastName, err = ask("Last name", false); err != nil {
		return err
	}
	if req.Password, err = ask("Password", true); err != nil {
		return err
	}
	if req.Confirm, err = ask("Confirm password", true); err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	u, err := a.users.Register(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Account created for %s\n", u.Username)
	return nil
}
