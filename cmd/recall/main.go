package main

// @title Recall API
// @version 1.0
// @description Hybrid semantic memory retrieval over PERSONAL, PROJECT and TASK tiers.

// @contact.name API Support
// @contact.url https://github.com/goclaw/recall

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /
// @schemes http https

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string

	// CLI overrides
	appName     string
	serverPort  int
	logLevel    string
	debugMode   bool
	storageType string
)

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Hybrid semantic memory retrieval service",
	Long: "recall stores owner-scoped memories in three tiers and retrieves them by\n" +
		"embedding similarity blended with recency and access frequency.",
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	flags.StringVar(&appName, "app-name", "", "Override app name")
	flags.IntVar(&serverPort, "port", 0, "Override server port")
	flags.StringVar(&logLevel, "log-level", "", "Override log level")
	flags.BoolVar(&debugMode, "debug", false, "Enable debug mode")
	flags.StringVar(&storageType, "storage", "", "Override storage type (memory, badger, sqlite)")

	rootCmd.AddCommand(serveCmd, sweepCmd, versionCmd)
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if appName != "" {
		overrides["app.name"] = appName
	}
	if serverPort != 0 {
		overrides["server.port"] = serverPort
	}
	if logLevel != "" {
		overrides["log.level"] = logLevel
	}
	if debugMode {
		overrides["app.debug"] = true
	}
	if storageType != "" {
		overrides["storage.type"] = storageType
	}

	return overrides
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
