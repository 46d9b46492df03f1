package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"audioindex/internal/audio"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeRecordsJSON prints records as an array, never null.
func writeRecordsJSON(cmd *cobra.Command, records []audio.Record) error {
	if records == nil {
		records = []audio.Record{}
	}
	return writeJSON(cmd, records)
}
