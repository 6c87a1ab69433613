package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hardwarebob/reftar/extractor"
	"github.com/hardwarebob/reftar/format"
)

var infoFile string

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print a reftar archive's header and entry count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if infoFile == "" {
			return usageError{err: errMissingFile}
		}
		in, err := os.Open(infoFile)
		if err != nil {
			return err
		}
		defer in.Close()

		archiveHeader, entries, err := extractor.List(in)
		if err != nil {
			return err
		}

		stat, err := in.Stat()
		if err != nil {
			return err
		}

		var dirs, files int
		for _, e := range entries {
			if e.Header.FileType == format.TypeDirectory {
				dirs++
			} else {
				files++
			}
		}

		fmt.Printf("version:      %d\n", archiveHeader.Version)
		fmt.Printf("block size:   %d\n", archiveHeader.BlockSize)
		fmt.Printf("archive size: %d bytes\n", stat.Size())
		fmt.Printf("entries:      %d (%d directories, %d other)\n", len(entries), dirs, files)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringVarP(&infoFile, "file", "f", "", "archive path to read")
}
