// Command syncctl is a developer-facing CLI front door onto C4/C5 (the
// client sync driver), for manually exercising a sync cycle against a
// running server without a full desktop/mobile client. Grounded on the
// examples corpus's bd-examples/bd root+subcommand Cobra layout: a
// package-level rootCmd wired up in init(), one file per subcommand.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	dbPath    string
	serverURL string
	appSalt   string
	userAgent string
)

var rootCmd = &cobra.Command{
	Use:   "syncctl",
	Short: "Drive the notesync client sync engine from the command line",
	Long: `syncctl exercises the client sync driver (C4/C5) against a local
SQLite store and a running notesync-core server, for manual testing.

Examples:
  syncctl login --user-id u1 --device-id d1 --access-token ey...
  syncctl sync
  syncctl sync note <note-id>
  syncctl status`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	viper.SetEnvPrefix("SYNCCTL")
	viper.AutomaticEnv()
	viper.SetDefault("db", "syncctl.db")
	viper.SetDefault("server", "http://localhost:8080")
	viper.SetDefault("app_salt", "dev-app-salt-change-in-production")
	viper.SetDefault("user_agent", "syncctl/1.0")

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", viper.GetString("db"), "path to the local SQLite store")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", viper.GetString("server"), "notesync-core server base URL")
	rootCmd.PersistentFlags().StringVar(&appSalt, "app-salt", viper.GetString("app_salt"), "app salt used to derive the token encryption key")
	rootCmd.PersistentFlags().StringVar(&userAgent, "user-agent", viper.GetString("user_agent"), "User-Agent header sent with sync requests")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(compactCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
