package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pdf-inquiry/internal/config"
)

var (
	cfgFile  string
	verbose  bool
	userName string
)

var rootCmd = &cobra.Command{
	Use:   "pdfqa",
	Short: "Ask questions about your PDF documents",
	Long: `pdfqa indexes uploaded PDF documents and answers natural-language
questions about them from the most relevant passages. Conversations are
kept per user and per document, and can be renamed and exported.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultConfigFile, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&userName, "user", "u", "", "username conversations are recorded under (default $USER)")
}

// currentUser returns the --user flag, falling back to the login name.
func currentUser() string {
	if userName != "" {
		return userName
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}
