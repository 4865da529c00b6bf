package cmd

import (
	"fmt"
	"strconv"

	"deskshell/internal/ports"

	"github.com/spf13/cobra"
)

func newPortsCmd() *cobra.Command {
	var count int
	var host string

	cmd := &cobra.Command{
		Use:   "ports",
		Short: "Allocate distinct free local ports and print them",
		Long: `Finds the requested number of mutually distinct ports that can be bound
on the given interface, using the same allocator as 'deskshell serve', and
prints one per line. The ports are released again before the command exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			assignment, err := ports.NewAllocator(ports.WithHost(host)).Allocate(cmd.Context(), count)
			if err != nil {
				return err
			}
			for _, p := range assignment {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 2, "Number of ports to allocate")
	cmd.Flags().StringVar(&host, "host", ports.DefaultHost, "Interface to probe")

	cmd.AddCommand(&cobra.Command{
		Use:   "verify <port>",
		Short: "Check that a port can currently be bound",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid port %q: %w", args[0], err)
			}
			if err := ports.Verify(host, port); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "port %d is free on %s\n", port, host)
			return nil
		},
	})
	return cmd
}

func init() {
	rootCmd.AddCommand(newPortsCmd())
}
