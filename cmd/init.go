package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pdf-inquiry/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize pdfqa configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose providers and storage, and writes a .pdfqa.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
