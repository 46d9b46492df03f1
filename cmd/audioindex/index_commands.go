package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"audioindex/internal/audioservice"
	"audioindex/internal/snapshot"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the build-time snapshot from the live records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := strings.TrimSpace(target)
			if path == "" {
				path = cfg.Paths.SnapshotPath
			}
			return ctx.withService(cmd, func(c context.Context, svc *audioservice.Service) error {
				n, err := snapshot.Export(c, svc, path)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"path": path, "records": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d recordings to %s\n", n, path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&target, "output", "o", "", "Snapshot path (defaults to paths.snapshot_path)")
	return cmd
}

func newIndexCommand(ctx *commandContext) *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Maintain the index file",
	}
	indexCmd.AddCommand(newIndexRebuildCommand(ctx))
	indexCmd.AddCommand(newIndexVerifyCommand(ctx))
	return indexCmd
}

func newIndexRebuildCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rewrite the index file from the primary store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *audioservice.Service) error {
				n, err := svc.RebuildIndex(c)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"records": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Index rebuilt with %d recordings\n", n)
				return nil
			})
		},
	}
}

func newIndexVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Report inconsistencies in the index file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *audioservice.Service) error {
				issues, err := svc.VerifyIndex(c)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					lines := make([]string, 0, len(issues))
					for _, issue := range issues {
						lines = append(lines, issue.String())
					}
					return writeJSON(cmd, map[string]any{"issues": lines})
				}
				out := cmd.OutOrStdout()
				if len(issues) == 0 {
					fmt.Fprintln(out, "Index file is consistent")
					return nil
				}
				for _, issue := range issues {
					fmt.Fprintln(out, issue.String())
				}
				return fmt.Errorf("index file has %d issues; run 'audioindex index rebuild' or re-save the affected records", len(issues))
			})
		},
	}
}

func newSnapshotCommand(ctx *commandContext) *cobra.Command {
	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Query the exported snapshot without touching the live stores",
	}

	var flags filterFlags
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshot recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			reader, err := ctx.snapshotReader(cmd)
			if err != nil {
				return err
			}
			records, err := reader.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printRecords(cmd, ctx, records)
		},
	}
	flags.register(listCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := ctx.snapshotReader(cmd)
			if err != nil {
				return err
			}
			stats, err := reader.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, stats)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, statsTable(stats, shouldColorize(out)))
			return nil
		},
	}

	entriesCmd := &cobra.Command{
		Use:   "entries",
		Short: "List entry ids that have audio",
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := ctx.snapshotReader(cmd)
			if err != nil {
				return err
			}
			entries, err := reader.EntriesWithAudio(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				if entries == nil {
					entries = []string{}
				}
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			for _, entry := range entries {
				fmt.Fprintln(out, entry)
			}
			return nil
		},
	}

	snapshotCmd.AddCommand(listCmd, statsCmd, entriesCmd)
	return snapshotCmd
}
