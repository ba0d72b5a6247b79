package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-roadmap/internal/report"
)

func tracksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tracks",
		Short: "List loaded tracks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, t := range a.Tracks() {
				printf(cmd.OutOrStdout(), "%s\t%s\t%d modules\n", t.Folder, t.Title, t.ModuleCount())
			}
			return nil
		},
	}
}

func modulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List a track's modules in order with their progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			nav, _, err := trackNavigator(cmd, a)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tSLUG\tTITLE\tVISITED\tDONE")
			for _, row := range nav.Overview() {
				done := ""
				if row.Progress.Completed {
					done = "yes"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d/%d\t%s\n",
					row.Position, row.Module.Slug, row.Module.Title,
					row.Progress.CompletedCount, row.Progress.TotalTopics, done)
			}
			return tw.Flush()
		},
	}
}

func progressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress <slug>",
		Short: "Show progress of one module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			nav, _, err := trackNavigator(cmd, a)
			if err != nil {
				return err
			}
			m, err := nav.ResolveModule(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			p := nav.ModuleProgress(m)
			out := cmd.OutOrStdout()
			printf(out, "%s (%s)\n", m.Title, m.Slug)
			printf(out, "completed: %t\n", p.Completed)
			printf(out, "visited:   %d/%d (%d%%)\n", p.CompletedCount, p.TotalTopics, p.Percent)
			if ref, ok, _ := nav.Resume(m.Slug); ok {
				printf(out, "resume at: %d %s\n", ref.Index, ref.Title)
			}
			return nil
		},
	}
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <slug>",
		Short: "Clear a module's progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			nav, _, err := trackNavigator(cmd, a)
			if err != nil {
				return err
			}
			if err := nav.ResetModule(args[0]); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			printf(cmd.OutOrStdout(), "reset %s\n", args[0])
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a track's progress to an .xlsx file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			nav, folder, err := trackNavigator(cmd, a)
			if err != nil {
				return err
			}
			track, _ := a.Curriculum.Track(folder)

			path, _ := cmd.Flags().GetString("output")
			if path == "" {
				path = folder + "-progress.xlsx"
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := report.WriteProgress(f, track.Title, nav.Overview()); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output file (default <track>-progress.xlsx)")
	return cmd
}
