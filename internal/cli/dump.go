package cli

import (
	"bytes"

	"github.com/spf13/cobra"

	"github.com/openfpga-tools/bitdb/internal/bitdb"
	"github.com/openfpga-tools/bitdb/internal/chipdb"
)

// NewDumpCommand creates the dump command, which prints the canonical
// text form of one tile type's bit database.
func NewDumpCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <family> <tiletype>",
		Short: "Print a tile bit database in canonical text form",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			db, err := openTileDatabase(opts, args[0], args[1])
			if err != nil {
				return reportDBError(f, err)
			}

			var buf bytes.Buffer
			if err := db.WriteTo(&buf); err != nil {
				return WrapExitError(ExitCommandError, "render database", err)
			}
			return f.Success(buf.String())
		},
	}
}

// openTileDatabase resolves a (family, tiletype) pair against the
// configured database root.
func openTileDatabase(opts *RootOptions, family, tileType string) (*bitdb.TileBitDatabase, error) {
	reg, err := chipdb.Open(opts.DBRoot)
	if err != nil {
		return nil, err
	}
	return reg.TileDatabase(chipdb.TileLocator{Family: family, TileType: tileType})
}

// reportDBError prints a database error through the formatter and
// converts it into an exit code.
func reportDBError(f *OutputFormatter, err error) error {
	code := ExitFailure
	errCode := "E001"
	switch {
	case bitdb.IsNotFound(err):
		errCode = "E005"
	case bitdb.IsParseError(err):
		errCode = "E004"
		code = ExitCommandError
	}
	if outErr := f.Error(errCode, err.Error()); outErr != nil {
		return outErr
	}
	return &ExitError{Code: code, Message: err.Error(), Err: err}
}
