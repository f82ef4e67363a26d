package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/talkincode/storefront/config"
	"github.com/talkincode/storefront/internal/adminapi"
	"github.com/talkincode/storefront/internal/app"
	"github.com/talkincode/storefront/internal/webserver"
)

var (
	BuildVersion = "develop"
	BuildTime    = "unknown"
)

var configFile string

// @title Storefront API
// @version 1.0
// @description Customers, orders, items and reviews.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to the yaml config file")
	rootCmd.AddCommand(serveCmd, initdbCmd, auditCmd, versionCmd)
}

var rootCmd = &cobra.Command{
	Use:          "storefront",
	Short:        "storefront REST api server",
	SilenceUsage: true,
	RunE:         serveF,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the api server and the background jobs",
	RunE:  serveF,
}

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Drop every stored document and seed the database again",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := setup()
		if err != nil {
			return err
		}
		defer application.Release()
		if err := application.InitDb(cmd.Context()); err != nil {
			return err
		}
		zap.S().Info("database initialized")
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Report dangling references and orphaned documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := setup()
		if err != nil {
			return err
		}
		defer application.Release()
		report, err := application.RunAudit(cmd.Context())
		if err != nil {
			return err
		}
		data, err := jsoniter.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "storefront %s (built %s)\n", BuildVersion, BuildTime)
	},
}

func setup() (*app.Application, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	application := app.NewApplication(cfg)
	if err := application.Init(cfg); err != nil {
		return nil, err
	}
	return application, nil
}

func serveF(cmd *cobra.Command, args []string) error {
	application, err := setup()
	if err != nil {
		return err
	}
	defer application.Release()

	webserver.Init(application)
	adminapi.Init()
	application.StartBackgroundJobs()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(webserver.Start)
	g.Go(func() error {
		<-gctx.Done()
		zap.S().Info("shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return webserver.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
