package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hardwarebob/reftar/rterr"
)

var errMissingFile = errors.New("-f archive path is required")

var rootCmd = &cobra.Command{
	Use:   "reftar",
	Short: "reftar is a block-deduplicating, reflink-aware archiver",
	Long: `reftar packs a file tree into a single archive that deduplicates
repeated block-aligned content, and unpacks it back out using
copy-on-write clones wherever the destination filesystem allows it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps a failed command's error to a process exit status: 1
// for a missing -f flag or a Validation error, 3 for a structurally
// corrupt archive, and 2 for everything else, including I/O failures
// and argument or flag errors reported by cobra itself.
func exitCode(err error) int {
	if _, ok := err.(usageError); ok {
		fmt.Fprintln(os.Stderr, "reftar:", err)
		return 1
	}
	fmt.Fprintln(os.Stderr, "reftar:", err)
	switch rterr.KindOf(err) {
	case rterr.CorruptArchive:
		return 3
	case rterr.Validation:
		return 1
	default:
		return 2
	}
}

// usageError marks a failure that should report exit code 1 (bad
// invocation) rather than being classified through rterr.KindOf.
type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
