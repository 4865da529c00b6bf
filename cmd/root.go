package cmd

import (
	"os"

	"deskshell/internal/app"
	"deskshell/pkg/logging"

	"github.com/spf13/cobra"
)

var (
	// configPath is an extra configuration file applied after the user and project layers.
	configPath string
	// debug enables verbose logging and turns on the services' dev switch.
	debug bool
	// jsonLogs writes logs as JSON lines, for packaged builds that log to a file.
	jsonLogs bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "deskshell",
	Short: "Run a local backend and frontend as one desktop application",
	Long: `deskshell starts a backend service and a frontend service on free local
ports, wires their environments together, waits until both answer and shows
where the application is running. Closing it stops both services and every
process they started.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. a service that failed to start)
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logging.LevelWarn
		if debug {
			level = logging.LevelDebug
		}
		if jsonLogs {
			logging.InitForJSON(level, cmd.ErrOrStderr())
		} else {
			logging.InitForCLI(level, cmd.ErrOrStderr())
		}
	},
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v // Set cobra's version field as well
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Set up version template
	rootCmd.SetVersionTemplate(`{{printf "deskshell version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

// newAppConfig builds the application configuration from the persistent flags.
func newAppConfig() *app.Config {
	cfg := app.NewConfig(configPath, debug, false)
	cfg.JSONLogs = jsonLogs
	return cfg
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Additional configuration file applied last")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Write logs as JSON lines")
}
