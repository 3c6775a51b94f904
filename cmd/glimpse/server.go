package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/taigrr/glimpse/internal/config"
	"github.com/taigrr/glimpse/pkg/preview"
	"github.com/taigrr/glimpse/pkg/scene"
	"github.com/taigrr/glimpse/pkg/stream"
)

//go:embed index.html
var indexHTML []byte

// runServer serves the viewer page at / and the frame stream at /ws until
// ctx is cancelled.
func runServer(ctx context.Context, cfg *config.Config, sc *scene.Scene, opts []preview.Option, log zerolog.Logger) error {
	w, h := cfg.Width, cfg.Height
	if w <= 0 || h <= 0 {
		w, h = 640, 480
	}
	ctl := preview.New(sc, append(opts, preview.WithSize(w, h))...)
	defer ctl.Close()
	if cfg.View == "" {
		ctl.Frame()
	}

	hub := stream.NewHub(ctl, log)
	defer hub.Close()
	ctl.Subscribe(hub)

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/health", func(rw http.ResponseWriter, r *http.Request) {
		st := ctl.Stats()
		fw, fh := ctl.Size()
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"state":      ctl.State().String(),
			"mode":       ctl.Mode().String(),
			"width":      fw,
			"height":     fh,
			"clients":    hub.Clients(),
			"frames":     st.Passes,
			"superseded": st.Superseded,
			"panics":     st.Panics,
			"faces":      st.Faces,
			"last_ms":    st.Took.Seconds() * 1000,
			"view":       ctl.ViewSettings(),
		})
	})
	mux.HandleFunc("/", func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(rw, r)
			return
		}
		rw.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = rw.Write(indexHTML)
	})

	srv := &http.Server{
		Addr:        cfg.Serve.Addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	if err := ctl.Start(ctx); err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Serve.Addr).Int("width", w).Int("height", h).Msg("HTTP server starting")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hub.Close()
	return srv.Shutdown(shutdownCtx)
}
