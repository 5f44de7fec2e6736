// Command matchmaker runs the signaling service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/trobanga/netcode/matchmaker"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "matchmaker",
		Short:         "Signaling service for WebRTC meshes",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings(configPath)
			if err != nil {
				return err
			}
			return serve(settings)
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to TOML settings file")
	cmd.AddCommand(userAddCmd(&configPath))
	return cmd
}

func loadSettings(path string) (matchmaker.Settings, error) {
	if path == "" {
		return matchmaker.DefaultSettings(), nil
	}
	return matchmaker.LoadSettings(path)
}

func setupLog(settings matchmaker.Settings) (*logrus.Entry, error) {
	level, err := logrus.ParseLevel(settings.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	log := logrus.New()
	log.SetLevel(level)
	return logrus.NewEntry(log), nil
}

func serve(settings matchmaker.Settings) error {
	log, err := setupLog(settings)
	if err != nil {
		return err
	}

	store, err := matchmaker.OpenStore(settings.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	app, err := matchmaker.NewApplication(settings, store, log)
	if err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		app.Shutdown(ctx)
	}()

	return app.Run()
}

func userAddCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "useradd <name> <password>",
		Short: "Add a user to the store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(*configPath)
			if err != nil {
				return err
			}
			store, err := matchmaker.OpenStore(settings.Database.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			id, err := store.CreateUser(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", args[0], id)
			return nil
		},
	}
}
