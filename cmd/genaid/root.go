package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"genaid/internal/backend"
	"genaid/internal/config"
	"genaid/internal/httpapi"
	"genaid/internal/manager"
	"genaid/internal/registry"
	"genaid/internal/runtime"
)

type rootOptions struct {
	configPath string

	addr         string
	modelsDir    string
	budgetMB     int
	marginMB     int
	defaultModel string
	engine       string
	verboseEng   bool
}

func buildRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "genaid",
		Short:         "Inference-graph model server with compiled-artifact caching",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file (yaml/json/toml); flags override it")
	root.PersistentFlags().StringVar(&opts.addr, "addr", "", "HTTP listen address, e.g. :8080")
	root.PersistentFlags().StringVar(&opts.modelsDir, "models-dir", "", "Directory to scan for models")
	root.PersistentFlags().IntVar(&opts.budgetMB, "memory-budget-mb", 0, "Memory budget in MB for all instances (0=unlimited)")
	root.PersistentFlags().IntVar(&opts.marginMB, "memory-margin-mb", 0, "Reserved memory margin in MB to keep free")
	root.PersistentFlags().StringVar(&opts.defaultModel, "default-model", "", "Default model id when request omits model")
	root.PersistentFlags().StringVar(&opts.engine, "engine", "", "Graph engine name")
	root.PersistentFlags().BoolVar(&opts.verboseEng, "engine-verbose", false, "Enable verbose engine logging")

	root.AddCommand(buildServeCmd(opts), buildCompileCmd(opts), buildModelsCmd(opts))
	return root
}

// loadConfig merges the config file (when given) with flag overrides and
// applies defaults.
func loadConfig(opts *rootOptions) (config.Config, error) {
	var cfg config.Config
	if opts.configPath != "" {
		c, err := config.Load(opts.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	if opts.addr != "" {
		cfg.Addr = opts.addr
	}
	if opts.modelsDir != "" {
		cfg.ModelsDir = opts.modelsDir
	}
	if opts.budgetMB != 0 {
		cfg.MemoryBudgetMB = opts.budgetMB
	}
	if opts.marginMB != 0 {
		cfg.MemoryMarginMB = opts.marginMB
	}
	if opts.defaultModel != "" {
		cfg.DefaultModel = opts.defaultModel
	}
	if opts.engine != "" {
		cfg.Engine = opts.engine
	}
	if opts.verboseEng {
		cfg.EngineVerboseLogging = true
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ModelsDir == "" {
		cfg.ModelsDir = "~/models"
	}
	return cfg, nil
}

func newManager(cfg config.Config) (*manager.Manager, error) {
	reg, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("load models: %w", err)
	}
	return manager.NewWithConfig(manager.ManagerConfig{
		Registry:      reg,
		BudgetMB:      cfg.MemoryBudgetMB,
		MarginMB:      cfg.MemoryMarginMB,
		DefaultModel:  cfg.DefaultModel,
		MaxQueueDepth: cfg.MaxQueueDepth,
		MaxWait:       time.Duration(cfg.MaxWaitSeconds) * time.Second,
		Engine:        cfg.Engine,
		EngineOptions: backend.InitOptions{VerboseLogging: cfg.EngineVerboseLogging},
	}), nil
}

func buildServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
			httpapi.SetLogger(logger)
			runtime.SetLogger(logger)

			mgr, err := newManager(cfg)
			if err != nil {
				return err
			}
			defer mgr.Close()

			baseCtx, cancelBase := context.WithCancel(context.Background())
			defer cancelBase()
			httpapi.SetBaseContext(baseCtx)

			mux := httpapi.NewMux(mgr)
			srv := &http.Server{Addr: cfg.Addr, Handler: mux}

			go func() {
				logger.Info().Str("addr", cfg.Addr).Str("models_dir", cfg.ModelsDir).Msg("genaid listening")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("server error: %v", err)
				}
			}()

			// Graceful shutdown (Ctrl+C / SIGTERM)
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop
			cancelBase()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error().Err(err).Msg("graceful shutdown error")
			}
			return nil
		},
	}
}

func buildCompileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compile <model-id>",
		Short: "Ahead-of-time compile a graph model's artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
			runtime.SetLogger(logger)

			mdl, err := registry.Find(cfg.ModelsDir, args[0])
			if err != nil {
				return err
			}
			eng, err := backend.Open(cfg.Engine, backend.InitOptions{VerboseLogging: cfg.EngineVerboseLogging})
			if err != nil {
				return err
			}
			mc, err := config.LoadModelConfig(mdl.Path)
			if err != nil {
				return err
			}
			// Loading the model drives compilation of the primary and every
			// pipeline graph, reusing artifacts that still validate.
			m, err := runtime.NewModel(eng, mdl.Path, mc)
			if err != nil {
				return err
			}
			defer m.Close()
			for id, p := range m.CompiledPaths() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, p)
			}
			return nil
		},
	}
}

func buildModelsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models discovered under the models directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			models, err := registry.LoadDir(cfg.ModelsDir)
			if err != nil {
				return err
			}
			for _, m := range models {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", m.ID, m.Kind, m.Path)
			}
			return nil
		},
	}
}
