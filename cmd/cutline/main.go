package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/keagan/cutline/internal/config"
	"github.com/keagan/cutline/internal/gui"
	"github.com/keagan/cutline/internal/logging"
	"github.com/keagan/cutline/internal/monitor"
	"github.com/keagan/cutline/internal/pipeline"
	"github.com/keagan/cutline/internal/server"
	"github.com/keagan/cutline/internal/storage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cutline",
	Short: "cutline - timeline editing and overlay compositing",
	Long:  "Project timelines, schedule overlays and bake them into video with ffmpeg.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logging
		logging.Init(verbose, "console")

		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cfg.Log.Verbose || cfg.Log.Format != "console" {
			logging.Init(verbose || cfg.Log.Verbose, cfg.Log.Format)
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(transcriptCmd)
	rootCmd.AddCommand(designCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(configCmd)
}

func newPipeline(cmd *cobra.Command) (*pipeline.Pipeline, error) {
	return pipeline.New(log.Logger, config.FromContext(cmd.Context()))
}

func openDesigns(cmd *cobra.Command) (*storage.Designs, storage.Store, error) {
	cfg := config.FromContext(cmd.Context())
	store, err := storage.Open(log.Logger, cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}
	watcher := monitor.NewWatcher(cfg.Monitor.SlowCall, monitor.NewLogReporter(log.Logger))
	return storage.NewDesigns(log.Logger, store, watcher), store, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		pipe, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		defer pipe.Close()

		designs, store, err := openDesigns(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		srv := server.New(log.Logger, cfg, pipe, pipe.Compositor(), designs)
		return srv.Run(cmd.Context(), cfg.Server.Addr)
	},
}

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the editor window",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		defer pipe.Close()

		gui.RunGUI(cmd.Context(), log.Logger, pipe)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		defer enc.Close()
		return enc.Encode(config.FromContext(cmd.Context()))
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("config written")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config)")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
