package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"audioindex/internal/audio"
	"audioindex/internal/audioservice"
)

func newAudioCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newUploadCommand(ctx),
		newGetCommand(ctx),
		newListCommand(ctx),
		newDeleteCommand(ctx),
		newStatsCommand(ctx),
		newPatchCommand(ctx),
	}
}

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var meta audio.Metadata
	var level string
	var mimeType string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Store a recording and index it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := audio.ParseLevel(level)
			if err != nil {
				return err
			}
			meta.Level = parsed

			path := args[0]
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer file.Close()

			if strings.TrimSpace(mimeType) == "" {
				mimeType = detectMimeType(path)
			}

			return ctx.withService(cmd, func(c context.Context, svc *audioservice.Service) error {
				rec, err := svc.Upload(c, audioservice.UploadRequest{
					Body:     file,
					Filename: filepath.Base(path),
					MimeType: mimeType,
					Metadata: meta,
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, rec)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Uploaded %s\n", rec.ID)
				fmt.Fprintf(out, "URL: %s\n", rec.URL)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&meta.EntryID, "entry", "e", "", "Dictionary entry id (required)")
	cmd.Flags().StringVarP(&level, "level", "l", "", "word, meaning, or example (required)")
	cmd.Flags().StringVar(&meta.LevelID, "level-id", "", "Meaning or example identifier, e.g. meaning-0")
	cmd.Flags().StringVar(&meta.Speaker, "speaker", "", "Speaker name")
	cmd.Flags().StringVar(&meta.Dialect, "dialect", "", "Speaker dialect")
	cmd.Flags().StringVar(&meta.Quality, "quality", "", "Recording quality")
	cmd.Flags().StringVar(&meta.Notes, "notes", "", "Free-form notes")
	cmd.Flags().StringVar(&mimeType, "mime", "", "MIME type (detected from the extension when empty)")
	_ = cmd.MarkFlagRequired("entry")
	_ = cmd.MarkFlagRequired("level")
	return cmd
}

var audioMimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".flac": "audio/flac",
	".webm": "audio/webm",
}

// detectMimeType maps common audio extensions first; the system table does
// not know most of them.
func detectMimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if known, ok := audioMimeTypes[ext]; ok {
		return known
	}
	if detected := mime.TypeByExtension(ext); detected != "" {
		return detected
	}
	return "application/octet-stream"
}

func newGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *audioservice.Service) error {
				rec, err := svc.GetRecord(c, args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, rec)
				}
				out := cmd.OutOrStdout()
				if rec == nil {
					fmt.Fprintf(out, "No recording with id %s\n", args[0])
					return nil
				}
				for _, line := range recordDetail(*rec) {
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
}

type filterFlags struct {
	entryID string
	level   string
	levelID string
	speaker string
	dialect string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.entryID, "entry", "e", "", "Only recordings of this entry")
	cmd.Flags().StringVarP(&f.level, "level", "l", "", "Only recordings at this level")
	cmd.Flags().StringVar(&f.levelID, "level-id", "", "Only recordings with this level id")
	cmd.Flags().StringVar(&f.speaker, "speaker", "", "Only recordings by this speaker")
	cmd.Flags().StringVar(&f.dialect, "dialect", "", "Only recordings in this dialect")
}

func (f *filterFlags) filter() (audio.Filter, error) {
	filter := audio.Filter{
		EntryID: f.entryID,
		LevelID: f.levelID,
		Speaker: f.speaker,
		Dialect: f.dialect,
	}
	if strings.TrimSpace(f.level) != "" {
		level, err := audio.ParseLevel(f.level)
		if err != nil {
			return audio.Filter{}, err
		}
		filter.Level = level
	}
	return filter, nil
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var flags filterFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recordings, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			return ctx.withService(cmd, func(c context.Context, svc *audioservice.Service) error {
				records, err := svc.List(c, filter)
				if err != nil {
					return err
				}
				return printRecords(cmd, ctx, records)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func printRecords(cmd *cobra.Command, ctx *commandContext, records []audio.Record) error {
	if ctx.jsonOutput() {
		return writeRecordsJSON(cmd, records)
	}
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No recordings found")
		return nil
	}
	fmt.Fprintln(out, recordTable(records, shouldColorize(out)))
	return nil
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete recordings and their blobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *audioservice.Service) error {
				out := cmd.OutOrStdout()
				var errs []error
				for _, id := range args {
					if err := svc.Delete(c, id); err != nil {
						errs = append(errs, fmt.Errorf("delete %s: %w", id, err))
						continue
					}
					if !ctx.jsonOutput() {
						fmt.Fprintf(out, "Deleted %s\n", id)
					}
				}
				if ctx.jsonOutput() {
					return errors.Join(append(errs, writeJSON(cmd, map[string]any{"deleted": len(args) - len(errs)}))...)
				}
				return errors.Join(errs...)
			})
		},
	}
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize recordings by level",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *audioservice.Service) error {
				stats, err := svc.GetStats(c)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stats)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, statsTable(stats, shouldColorize(out)))
				return nil
			})
		},
	}
}

func newPatchCommand(ctx *commandContext) *cobra.Command {
	var duration float64
	var notes string

	cmd := &cobra.Command{
		Use:   "patch <id>",
		Short: "Set the duration or notes of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch audioservice.Patch
			if cmd.Flags().Changed("duration") {
				patch.Duration = &duration
			}
			if cmd.Flags().Changed("notes") {
				patch.Notes = &notes
			}
			if patch.IsZero() {
				return errors.New("nothing to change; pass --duration or --notes")
			}
			return ctx.withService(cmd, func(c context.Context, svc *audioservice.Service) error {
				rec, err := svc.UpdateMetadata(c, args[0], patch)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, rec)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", rec.ID)
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&duration, "duration", 0, "Duration in seconds")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes (empty clears them)")
	return cmd
}
