package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"bustogether/internal/app"
	"bustogether/internal/config"
	"bustogether/internal/database"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "bustogether",
		Short:        "BusTogether - time-boxed chat rooms for bus routes",
		Long:         "BusTogether opens a chat room for each bus route while its schedule window is running and discards it when the window ends.",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "path to a JSON or YAML config file")
	cmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRouteCmd())
	cmd.AddCommand(newScheduleCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bustogether %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// loadConfig applies defaults, then the dotenv file and environment, then the config file
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		// A missing dotenv file is normal outside development
		_ = godotenv.Load(envFile)
	}
	path, _ := cmd.Flags().GetString("config")
	return config.LoadConfigWithPrecedence(path)
}

// openRepository opens the record store described by the config
func openRepository(cmd *cobra.Command) (*database.Manager, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return database.NewManager(app.DatabaseConfig(cfg))
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
