package cmd

import (
	"fmt"
	"strings"
	"time"

	"deskshell/internal/process"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var pid int
	var name string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show running deskshell instances and the processes they started",
		Long: `Lists every running deskshell process, or the process given with --pid,
together with its descendant processes: the services and anything they spawned.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			roots := []int32{int32(pid)}
			if pid == 0 {
				found, err := process.FindByName(ctx, name)
				if err != nil {
					return fmt.Errorf("failed to list processes: %w", err)
				}
				roots = found
			}

			out := cmd.OutOrStdout()
			if len(roots) == 0 {
				fmt.Fprintln(out, "No running deskshell instances found")
				return nil
			}
			for _, root := range roots {
				infos, err := process.Inspect(ctx, int(root))
				if err != nil {
					fmt.Fprintf(out, "%d: %v\n", root, err)
					continue
				}
				for _, info := range infos {
					fmt.Fprintln(out, formatProcess(info, time.Now()))
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&pid, "pid", 0, "Inspect this process instead of searching by name")
	cmd.Flags().StringVar(&name, "name", "deskshell", "Process name to search for")
	return cmd
}

// formatProcess renders one process as an indented tree line.
func formatProcess(info process.ProcessInfo, now time.Time) string {
	uptime := "-"
	if !info.Started.IsZero() {
		uptime = now.Sub(info.Started).Truncate(time.Second).String()
	}
	cmdline := info.Cmdline
	if cmdline == "" {
		cmdline = info.Name
	}
	return fmt.Sprintf("%s%d %s [%s] up %s", strings.Repeat("  ", info.Depth), info.PID, cmdline, info.Status, uptime)
}

func init() {
	rootCmd.AddCommand(newStatusCmd())
}
