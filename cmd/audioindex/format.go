package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"audioindex/internal/audio"
)

var titleCaser = cases.Title(language.English)

func levelLabel(level audio.Level) string {
	return titleCaser.String(string(level))
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

func formatDuration(d *float64) string {
	if d == nil {
		return "-"
	}
	return strconv.FormatFloat(*d, 'f', 2, 64) + "s"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func valueOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func recordTable(records []audio.Record, colorize bool) string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.ID,
			rec.Metadata.EntryID,
			levelLabel(rec.Metadata.Level),
			valueOrDash(rec.Metadata.Speaker),
			formatSize(rec.Size),
			formatDuration(rec.Duration),
			formatTime(rec.CreatedAt),
		})
	}
	return renderTable(
		[]string{"ID", "Entry", "Level", "Speaker", "Size", "Duration", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
		colorize,
	)
}

func statsTable(stats audio.Stats, colorize bool) string {
	rows := [][]string{
		{"Total records", strconv.Itoa(stats.TotalRecords)},
		{"Entries with audio", strconv.Itoa(stats.EntriesWithAudio)},
	}
	for _, level := range audio.Levels {
		rows = append(rows, []string{levelLabel(level) + " recordings", strconv.Itoa(stats.RecordsByLevel[level])})
	}
	return renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}, colorize)
}

func recordDetail(rec audio.Record) []string {
	return []string{
		"ID:            " + rec.ID,
		"Entry:         " + rec.Metadata.EntryID,
		"Level:         " + levelLabel(rec.Metadata.Level),
		"Level ID:      " + valueOrDash(rec.Metadata.LevelID),
		"Speaker:       " + valueOrDash(rec.Metadata.Speaker),
		"Dialect:       " + valueOrDash(rec.Metadata.Dialect),
		"Quality:       " + valueOrDash(rec.Metadata.Quality),
		"Notes:         " + valueOrDash(rec.Metadata.Notes),
		"Original name: " + valueOrDash(rec.OriginalName),
		"MIME type:     " + valueOrDash(rec.MimeType),
		"Size:          " + formatSize(rec.Size),
		"Duration:      " + formatDuration(rec.Duration),
		"URL:           " + rec.URL,
		"Storage key:   " + rec.StorageKey,
		"Created:       " + formatTime(rec.CreatedAt),
		"Updated:       " + formatTime(rec.UpdatedAt),
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
