package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"hastycam/config"
	"hastycam/serve"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	ConfigPath string
	MySQLDSN   string
	Verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "hastycam",
		Short: "Manage video feed configuration",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.Verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "appConfig.json", "Path of the configuration file.")
	cmd.PersistentFlags().StringVar(&opts.MySQLDSN, "mysql-dsn", "", "Keep configuration in MySQL instead of --config, e.g. user:pass@tcp(host:3306)/hastycam.")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable debug logging.")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newExportCommand(opts))
	return cmd
}

func openStore(opts *rootOptions) (*config.Store, error) {
	if opts.MySQLDSN != "" {
		b, err := config.OpenMySQL(opts.MySQLDSN)
		if err != nil {
			return nil, err
		}
		return config.OpenBackend(b, config.Defaults())
	}
	return config.Open(opts.ConfigPath, config.Defaults())
}

func newServeCommand(root *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the feed configuration API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(root)
			if err != nil {
				return fmt.Errorf("failed to open configuration: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			updater := serve.NewUpdater()
			defer updater.Close()
			store.Listeners = append(store.Listeners, updater)

			if root.MySQLDSN == "" {
				if err := store.Watch(ctx); err != nil {
					log.Warnf("Not watching configuration file for changes: %v", err)
				}
			}

			accessLog := log.StandardLogger().Writer()
			defer accessLog.Close()

			srv := &http.Server{
				Addr:    fmt.Sprintf(":%d", port),
				Handler: serve.NewHandler(store, updater, accessLog),
			}
			go func() {
				<-ctx.Done()
				log.Println("Shutting down")
				srv.Close()
			}()

			log.Printf("Hosting feed API on port %d", port)
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 4000, "Port to host the API.")
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
