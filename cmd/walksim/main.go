// Command walksim drives the walking engine against a CityWalk server from the
// terminal, either one API call at a time or by replaying a recorded track.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/playperu/citywalk/internal/client"
)

var rootCmd = &cobra.Command{
	Use:   "walksim",
	Short: "CityWalk walking simulator",
	Long: `walksim talks to a CityWalk server as a walking user would.
Use paths, start, pause, status, history and rewards to inspect and drive
progress directly, or replay a YAML track to run the full geofence engine.
Flags can also be set as CITYWALK_SERVER, CITYWALK_TOKEN and CITYWALK_USER.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		cancel()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CITYWALK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("server", "s", "http://localhost:8080", "server base URL")
	rootCmd.PersistentFlags().String("token", "", "bearer token")
	rootCmd.PersistentFlags().String("user", "", "user id sent as X-User-Id when no token is set")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log engine activity")
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(pathsCmd())
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(pauseCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(rewardsCmd())
	rootCmd.AddCommand(replayCmd())
}

func newClient() (*client.Client, error) {
	c := client.New(viper.GetString("server"))
	c.BearerToken = viper.GetString("token")
	c.UserID = viper.GetString("user")
	if c.BearerToken == "" && c.UserID == "" {
		return nil, errors.New("--token or --user is required")
	}
	return c, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
