package cmd

import (
	"context"
	"fmt"

	"deskshell/internal/app"
	"deskshell/internal/config"

	"github.com/spf13/cobra"
)

// serveMode overrides the configured launch mode.
var serveMode string

// serveCopyURL copies the frontend URL to the clipboard once both services are ready.
var serveCopyURL bool

// serveEnvFiles are dotenv files loaded before the configuration.
var serveEnvFiles []string

// serveCmd defines the serve command structure.
// This is the main command of deskshell: it runs the backend and frontend
// until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the backend and frontend and keep them running until interrupted",
	Long: `Starts the configured backend and frontend services.

Startup sequence:
   - Two distinct free ports are allocated on the loopback interface.
   - The backend is started with its composed environment and must accept
     connections on its port before the frontend is started.
   - The frontend is started with the backend's URL in its environment.
   - Once both are ready, their URLs are printed.

Ctrl+C, SIGTERM or an unexpected exit of either service stops both services
and every process they started. A service that fails to start makes the
command exit with a non-zero status.

Configuration:
  deskshell layers ~/.config/deskshell/config.yaml, ./.deskshell/config.yaml
  and the file given with --config on top of built-in defaults.`,
	Args: cobra.NoArgs, // No arguments required
	RunE: runServe,
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, args []string) error {
	cfg := newAppConfig()
	cfg.CopyURL = serveCopyURL
	cfg.EnvFiles = serveEnvFiles
	cfg.Mode = config.Mode(serveMode)
	cfg.Output = cmd.OutOrStdout()

	// Create and initialize the application
	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	// Run the application
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

// init registers the serve command and its flags with the root command.
func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveMode, "mode", "", "Launch mode: dev or packaged (default from configuration)")
	serveCmd.Flags().BoolVar(&serveCopyURL, "copy-url", false, "Copy the frontend URL to the clipboard when ready")
	serveCmd.Flags().StringSliceVar(&serveEnvFiles, "env-file", []string{".env"}, "Dotenv files loaded before the configuration")
}
