package launcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/schardosin/bpmnbot/pkg/api"
	"github.com/schardosin/bpmnbot/pkg/chatbot"
	"github.com/schardosin/bpmnbot/pkg/config"
	"github.com/schardosin/bpmnbot/pkg/importer"
	"github.com/schardosin/bpmnbot/pkg/session"
	"github.com/schardosin/bpmnbot/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StudioConfig contains configuration for the web studio
type StudioConfig struct {
	Bot  *chatbot.Bot
	Port int
	// ConfigPath is watched for changes when set.
	ConfigPath string
	Logger     *zap.Logger
}

const shutdownTimeout = 10 * time.Second

// RunStudio starts the studio web server and blocks until ctx is cancelled.
func RunStudio(ctx context.Context, cfg *StudioConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	appCfg := cfg.Bot.Config()

	store, err := session.Open(ctx, appCfg.Studio.Store, appCfg.Studio.SessionTTL)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer store.Close()

	server := api.NewServer(cfg.Bot, store, session.NewKeyRing(), importer.New(nil), logger)

	janitor, err := session.NewJanitor(store, appCfg.Studio.SessionTTL, appCfg.Studio.CleanupSchedule, logger, server.Forget)
	if err != nil {
		return err
	}
	janitor.Start()
	defer janitor.Stop()

	router := mux.NewRouter()
	server.RegisterRoutes(router)
	router.PathPrefix("/").Handler(webHandler(logger))

	port := cfg.Port
	if port == 0 {
		port = appCfg.Studio.Port
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("studio listening", zap.Int("port", port), zap.String("store", appCfg.Studio.Store.Driver))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if cfg.ConfigPath != "" {
		g.Go(func() error {
			err := config.Watch(gctx, cfg.ConfigPath, logger, cfg.Bot.SetConfig)
			if err != nil {
				// the studio keeps running without hot reload
				logger.Warn("config watcher stopped", zap.Error(err))
			}
			return nil
		})
	}

	fmt.Printf("\n")
	fmt.Printf("  🧩 BPMN Studio is running!\n")
	fmt.Printf("\n")
	fmt.Printf("  ➜  Local:   http://localhost:%d\n", port)
	fmt.Printf("\n")
	fmt.Printf("  Press Ctrl+C to stop\n")
	fmt.Printf("\n")

	return g.Wait()
}

// webHandler serves the studio UI from web/dist on disk when present, else
// from the embedded copy.
func webHandler(logger *zap.Logger) http.Handler {
	if dir := findWebDir(); dir != "" {
		logger.Info("serving web assets from disk", zap.String("dir", dir))
		return spaFileServer(os.DirFS(dir))
	}
	if dist := web.GetDistFS(); dist != nil {
		return spaFileServer(dist)
	}

	logger.Warn("no web assets found; only the API is available")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" || r.URL.Path == "/index.html" {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>BPMN Studio</title></head>
<body style="font-family: sans-serif; padding: 40px;">
<h1>BPMN Studio</h1>
<p>Web assets not found. The API is available under <code>/api</code>.</p>
</body>
</html>`)
			return
		}
		http.NotFound(w, r)
	})
}

// findWebDir looks for the web/dist directory
func findWebDir() string {
	paths := []string{
		"web/dist",
		"../web/dist",
		"../../web/dist",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, "web/dist"),
			filepath.Join(exeDir, "../web/dist"),
		)
	}

	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if _, err := os.Stat(filepath.Join(p, "index.html")); err == nil {
				absPath, _ := filepath.Abs(p)
				return absPath
			}
		}
	}
	return ""
}

// spaFileServer serves files from fsys with fallback to index.html
func spaFileServer(fsys fs.FS) http.Handler {
	fileServer := http.FileServer(http.FS(fsys))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean(r.URL.Path)
		if name == "/" {
			fileServer.ServeHTTP(w, r)
			return
		}
		if _, err := fs.Stat(fsys, name[1:]); err != nil {
			r2 := r.Clone(r.Context())
			r2.URL.Path = "/"
			fileServer.ServeHTTP(w, r2)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}
