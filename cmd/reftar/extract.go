package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hardwarebob/reftar/extractor"
)

var (
	extractFile string
	extractDir  string
	extractVerb bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a reftar archive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if extractFile == "" {
			return usageError{err: errMissingFile}
		}
		in, err := os.Open(extractFile)
		if err != nil {
			return err
		}
		defer in.Close()

		if extractDir != "" {
			if err := os.MkdirAll(extractDir, 0o755); err != nil {
				return err
			}
		} else {
			extractDir = "."
		}

		var verboseWriter io.Writer = io.Discard
		if extractVerb {
			verboseWriter = os.Stdout
		}

		x, err := extractor.New(in, extractDir, verboseWriter)
		if err != nil {
			return err
		}
		return x.ExtractAll()
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVarP(&extractFile, "file", "f", "", "archive path to read")
	extractCmd.Flags().StringVarP(&extractDir, "directory", "C", "", "directory to extract into (default: current directory)")
	extractCmd.Flags().BoolVarP(&extractVerb, "verbose", "v", false, "list each entry as it is extracted")
}
