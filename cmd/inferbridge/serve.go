package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"inferbridge/internal/bridge"
	"inferbridge/internal/config"
	"inferbridge/internal/httpapi"
	"inferbridge/internal/llm"
	"inferbridge/internal/registry"
	"inferbridge/internal/telemetry"
	"inferbridge/pkg/types"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Preload configured models and expose status and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				c.cfg.OpsAddr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c.cfg, llm.NewLlama(), prometheus.DefaultRegisterer, c.log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", os.Getenv("INFERBRIDGE_OPS_ADDR"), "Ops listen address (default from config)")
	return cmd
}

// serve runs the ops server and preloads models until ctx ends.
func serve(ctx context.Context, cfg config.Config, backend llm.Backend, reg prometheus.Registerer, log zerolog.Logger) error {
	metrics := telemetry.New(reg)
	llmSvc := bridge.New(bridge.KindLLM, backend,
		bridge.WithLogger(log),
		bridge.WithObserver(metrics),
		bridge.WithDefaults(cfg.LLM),
	)
	asrSvc := bridge.New(bridge.KindASR, backend,
		bridge.WithLogger(log),
		bridge.WithObserver(metrics),
		bridge.WithDefaults(cfg.ASR),
	)
	group := bridge.NewGroup(llmSvc, asrSvc)
	defer group.Close()

	httpapi.SetLogger(log)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.Origins, cfg.CORS.Methods, cfg.CORS.Headers)
	srv := &http.Server{
		Addr:              cfg.OpsAddr,
		Handler:           httpapi.NewMux(&opsService{group: group, modelsDir: cfg.ModelsDir, log: log}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.OpsAddr).Str("models_dir", cfg.ModelsDir).Msg("ops server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := preload(gctx, group, cfg.Preload, log); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		group.SetReady(true)
		log.Info().Int("models", len(cfg.Preload)).Msg("ready")
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown")
		}
		return nil
	})
	return g.Wait()
}

// preload loads every configured model, one per goroutine. Any failure is
// fatal to serve.
func preload(ctx context.Context, group *bridge.Group, items []config.Preload, log zerolog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			svc, ok := group.Service(bridge.Kind(p.Service))
			if !ok {
				return fmt.Errorf("preload %s: no %s service", p.Path, p.Service)
			}
			h := svc.LoadModel(p.Path, p.Model)
			if h == bridge.InvalidHandle {
				return fmt.Errorf("preload %s: load failed", p.Path)
			}
			log.Info().Str("service", p.Service).Int64("handle", h).Str("path", p.Path).Msg("preloaded")
			return nil
		})
	}
	return g.Wait()
}

// opsService adapts a bridge.Group to the ops HTTP layer.
type opsService struct {
	group     *bridge.Group
	modelsDir string
	log       zerolog.Logger
}

func (o *opsService) Models() []types.Model {
	models, err := registry.LoadDir(o.modelsDir)
	if err != nil {
		o.log.Warn().Err(err).Str("dir", o.modelsDir).Msg("scan models dir")
		return nil
	}
	return models
}

func (o *opsService) Status() types.StatusResponse { return o.group.Status() }
func (o *opsService) Ready() bool                  { return o.group.Ready() }
