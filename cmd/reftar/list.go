package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hardwarebob/reftar/extractor"
	"github.com/hardwarebob/reftar/format"
)

var (
	listFile string
	listLong bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List a reftar archive's entries without extracting them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listFile == "" {
			return usageError{err: errMissingFile}
		}
		in, err := os.Open(listFile)
		if err != nil {
			return err
		}
		defer in.Close()

		_, entries, err := extractor.List(in)
		if err != nil {
			return err
		}
		for _, e := range entries {
			path := filepath.Join(e.Header.Path, e.Header.Name)
			if !listLong {
				fmt.Println(path)
				continue
			}
			fmt.Printf("%s %8s %8s %10d %s\n", typeLetter(e.Header.FileType), e.Header.Username, e.Header.Groupname, e.Header.FileSize, path)
		}
		return nil
	},
}

func typeLetter(t format.FileType) string {
	switch t {
	case format.TypeDirectory:
		return "d"
	case format.TypeSymlink:
		return "l"
	case format.TypeFIFO:
		return "p"
	case format.TypeCharDevice:
		return "c"
	case format.TypeBlockDevice:
		return "b"
	case format.TypeHardLink:
		return "h"
	default:
		return "-"
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listFile, "file", "f", "", "archive path to read")
	listCmd.Flags().BoolVarP(&listLong, "verbose", "v", false, "show type, owner, and size per entry")
}
