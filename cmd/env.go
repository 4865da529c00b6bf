package cmd

import (
	"fmt"

	"deskshell/internal/app"
	"deskshell/internal/config"
	"deskshell/internal/environment"
	"deskshell/internal/ports"
	"deskshell/internal/userconfig"
	"deskshell/pkg/logging"

	"github.com/spf13/cobra"
)

func newEnvCmd() *cobra.Command {
	var backendPort, frontendPort int
	var mode string

	cmd := &cobra.Command{
		Use:   "env [backend|frontend]",
		Short: "Print the environment each service would be started with",
		Long: `Composes the backend and frontend environments exactly as 'deskshell serve'
would and prints them. Values of keys that look like credentials are masked.
Ports that are not given are allocated.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"backend", "frontend"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := newAppConfig()
			cfg.Mode = config.Mode(mode)
			dc, err := app.LoadDeskshellConfig(cfg)
			if err != nil {
				return err
			}

			p := environment.Ports{Backend: backendPort, Frontend: frontendPort}
			if p.Backend == 0 || p.Frontend == 0 {
				assignment, err := ports.NewAllocator(ports.WithHost(dc.Ports.BindHost)).Allocate(cmd.Context(), 2)
				if err != nil {
					return err
				}
				if p.Backend == 0 {
					p.Backend = assignment[0]
				}
				if p.Frontend == 0 {
					p.Frontend = assignment[1]
				}
			}

			user, err := userconfig.New(dc.Directories.UserConfig).Load()
			if err != nil {
				logging.Warn("Env", "Ignoring unreadable user settings: %v", err)
				user = environment.Set{}
			}

			oc := app.OrchestratorConfig(dc, debug, environment.Host(), user)
			envs := environment.ComposeAll(map[string]environment.ServicePolicy{
				oc.Backend.Name:  oc.Backend.Policy,
				oc.Frontend.Name: oc.Frontend.Policy,
			}, oc.Inputs(p))

			out := cmd.OutOrStdout()
			for _, name := range []string{oc.Backend.Name, oc.Frontend.Name} {
				if len(args) == 1 && args[0] != name {
					continue
				}
				fmt.Fprintf(out, "# %s\n", name)
				set := envs[name]
				for _, k := range set.Keys() {
					fmt.Fprintf(out, "%s=%s\n", k, environment.Mask(k, set[k]))
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&backendPort, "backend-port", 0, "Backend port (allocated when 0)")
	cmd.Flags().IntVar(&frontendPort, "frontend-port", 0, "Frontend port (allocated when 0)")
	cmd.Flags().StringVar(&mode, "mode", "", "Launch mode: dev or packaged (default from configuration)")
	return cmd
}

func init() {
	rootCmd.AddCommand(newEnvCmd())
}
