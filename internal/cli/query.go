package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewQueryCommand creates the query command, which prints one mux,
// word, or enum entry from a tile bit database.
func NewQueryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <family> <tiletype> <mux|word|enum> <name>",
		Short: "Print one entry of a tile bit database",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			db, err := openTileDatabase(opts, args[0], args[1])
			if err != nil {
				return reportDBError(f, err)
			}

			kind, name := args[2], args[3]
			var entry string
			switch kind {
			case "mux":
				mux, err := db.MuxDataForSink(name)
				if err != nil {
					return reportDBError(f, err)
				}
				entry = mux.String()
			case "word":
				word, err := db.DataForSetword(name)
				if err != nil {
					return reportDBError(f, err)
				}
				entry = word.String()
			case "enum":
				enum, err := db.DataForEnum(name)
				if err != nil {
					return reportDBError(f, err)
				}
				entry = enum.String()
			default:
				return WrapExitError(ExitCommandError,
					fmt.Sprintf("unknown entry kind %q: must be mux, word, or enum", kind), nil)
			}
			return f.Success(strings.TrimRight(entry, "\n"))
		},
	}
}
