package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hardwarebob/reftar/creator"
	"github.com/hardwarebob/reftar/format"
)

var (
	createFile      string
	createBlockSize uint32
	createVerbose   bool
)

var createCmd = &cobra.Command{
	Use:   "create PATH...",
	Short: "Create a reftar archive from one or more input paths",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if createFile == "" {
			return usageError{err: errMissingFile}
		}
		out, err := os.Create(createFile)
		if err != nil {
			return err
		}
		defer out.Close()

		var verboseWriter io.Writer = io.Discard
		if createVerbose {
			verboseWriter = os.Stdout
		}

		c, err := creator.New(out, createBlockSize, verboseWriter)
		if err != nil {
			return err
		}
		if err := c.AddInputs(args); err != nil {
			return err
		}
		return c.Finish()
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVarP(&createFile, "file", "f", "", "archive path to write")
	createCmd.Flags().Uint32VarP(&createBlockSize, "block-size", "b", format.DefaultBlockSize, "archive block size in bytes")
	createCmd.Flags().BoolVarP(&createVerbose, "verbose", "v", false, "list each entry as it is archived")
}
