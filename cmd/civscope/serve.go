package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"civscope.ai/internal/config"
	"civscope.ai/internal/explorer/engine"
	"civscope.ai/internal/explorer/hover"
	"civscope.ai/internal/frameproto"
	"civscope.ai/internal/ingest"
	"civscope.ai/internal/metrics"
	"civscope.ai/internal/persistence/indexdb"
	"civscope.ai/internal/persistence/record"
	"civscope.ai/internal/stateproto"
	"civscope.ai/internal/transport/control"
	"civscope.ai/internal/transport/frames"
)

func serveCmd() *cobra.Command {
	var configPath, source, addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, source)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logger := log.New(os.Stdout, "[civscope] ", log.LstdFlags|log.Lmicroseconds)
			ctx, cancel := signalContext()
			defer cancel()
			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (.yaml, .yml or .toml)")
	cmd.Flags().StringVar(&source, "source", "", "simulation base URL or recording directory (overrides config)")
	cmd.Flags().StringVar(&addr, "addr", "", "http listen address (overrides config)")
	return cmd
}

// loadConfig loads path and applies a --source override.
func loadConfig(path, source string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if source = strings.TrimSpace(source); source != "" {
		cfg.Source.URL = source
	}
	return cfg, nil
}

func engineOptions(cfg config.Config, src ingest.Source, logger *log.Logger) engine.Options {
	return engine.Options{
		Source:         src,
		Logger:         logger,
		MaxHistory:     cfg.History.MaxHistory,
		PollInterval:   cfg.PollInterval(),
		FrameInterval:  cfg.FrameInterval(),
		ReplayInterval: cfg.ReplayInterval(),
		Canvas: engine.Canvas{
			Width:  cfg.Render.CanvasWidth,
			Height: cfg.Render.CanvasHeight,
			Scale:  cfg.Render.DisplayScale,
		},
		Hover: hover.Params{
			Scale:          cfg.Render.DisplayScale,
			BaseThreshold:  cfg.Hover.BaseThreshold,
			Margin:         cfg.Hover.Margin,
			HitScale:       cfg.Hover.HitScale,
			PriorityWeight: cfg.Hover.PriorityWeight,
		},
	}
}

func openSource(cfg config.Config) (ingest.Source, error) {
	if cfg.SourceIsRecording() {
		src, err := ingest.NewRecordingSource(strings.TrimPrefix(cfg.Source.URL, "file://"))
		if err != nil {
			return nil, fmt.Errorf("open recording: %w", err)
		}
		return src, nil
	}
	return ingest.NewHTTPSource(cfg.Source.URL, cfg.RequestTimeout(), nil), nil
}

func serve(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	src, err := openSource(cfg)
	if err != nil {
		return err
	}

	var rec *record.Recorder
	if cfg.Record.Dir != "" {
		rec = record.NewRecorder(cfg.Record.Dir)
		defer rec.Close()
	}
	var idx *indexdb.SQLiteIndex
	if cfg.Record.IndexPath != "" {
		idx, err = indexdb.OpenSQLite(cfg.Record.IndexPath)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer idx.Close()
	}
	if rec != nil || idx != nil {
		src = ingest.Tap(src, func(b stateproto.StateBatch) {
			if len(b.Snapshots) == 0 {
				return
			}
			if rec != nil {
				if _, err := rec.Record(b); err != nil {
					metrics.RecordErrors.Inc()
					logger.Printf("record: %v", err)
				}
			}
			if idx != nil {
				snaps := ingest.NormalizeBatch(b)
				for i := range snaps {
					idx.RecordSnapshot(&snaps[i])
				}
			}
		})
	}

	e := engine.New(engineOptions(cfg, src, logger))
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newMux(e, cfg, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := e.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("engine: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Printf("listening on %s (source %s)", cfg.Server.Addr, cfg.Source.URL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	err = g.Wait()
	logger.Printf("stopped")
	return err
}

func newMux(e *engine.Engine, cfg config.Config, logger *log.Logger) *http.ServeMux {
	params := frameproto.Params{
		PollIntervalMS:   cfg.PollInterval().Milliseconds(),
		FrameHz:          cfg.Render.FrameHz,
		ReplayIntervalMS: cfg.ReplayInterval().Milliseconds(),
		MaxHistory:       cfg.History.MaxHistory,
		Canvas:           engine.Canvas{Width: cfg.Render.CanvasWidth, Height: cfg.Render.CanvasHeight, Scale: cfg.Render.DisplayScale},
		AllowRemote:      cfg.Server.AllowRemote,
	}
	fs := frames.NewServer(e, params, logger)
	cs := control.NewServer(e, cfg.Server.AllowRemote, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/v1/bootstrap", fs.BootstrapHandler())
	mux.HandleFunc("/v1/frames", fs.WSHandler())
	mux.HandleFunc("/v1/control", cs.Handler())
	return mux
}
