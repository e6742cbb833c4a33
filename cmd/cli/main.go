package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/yusco/siteaudit/cmd/cli/exportcmd"
	"github.com/yusco/siteaudit/cmd/cli/formcmd"
	"github.com/yusco/siteaudit/cmd/cli/storagecmd"
	"github.com/yusco/siteaudit/internal/errors"
)

func init() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	rootCmd.AddGroup(formcmd.Group)
	rootCmd.AddCommand(formcmd.Form, formcmd.Sites)
	rootCmd.AddGroup(exportcmd.Group)
	rootCmd.AddCommand(exportcmd.Export)
	rootCmd.AddGroup(storagecmd.Group)
	rootCmd.AddCommand(storagecmd.Storage)
}

var rootCmd = &cobra.Command{
	Use:          "siteaudit-cli",
	Long:         `Command line utilities for the site audit questionnaire`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
