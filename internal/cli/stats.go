package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// TileStats summarizes one tile type's database.
type TileStats struct {
	Family   string `json:"family"`
	TileType string `json:"tile_type"`
	Muxes    int    `json:"muxes"`
	Arcs     int    `json:"arcs"`
	Words    int    `json:"words"`
	Enums    int    `json:"enums"`
}

func (s TileStats) String() string {
	return fmt.Sprintf("%s/%s: %d muxes (%d arcs), %d words, %d enums",
		s.Family, s.TileType, s.Muxes, s.Arcs, s.Words, s.Enums)
}

// NewStatsCommand creates the stats command, which counts the entries
// in one tile type's database.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <family> <tiletype>",
		Short: "Summarize a tile bit database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			db, err := openTileDatabase(opts, args[0], args[1])
			if err != nil {
				return reportDBError(f, err)
			}

			stats := TileStats{Family: args[0], TileType: args[1]}
			for _, sink := range db.Sinks() {
				mux, err := db.MuxDataForSink(sink)
				if err != nil {
					return reportDBError(f, err)
				}
				stats.Muxes++
				stats.Arcs += len(mux.Arcs)
			}
			stats.Words = len(db.SettingWords())
			stats.Enums = len(db.SettingEnums())
			return f.Success(stats)
		},
	}
}
