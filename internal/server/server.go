package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"

	"github.com/akolanti/HybridRAG/internal/adapter/utils"
	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/middleware"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
)

var (
	server  *http.Server
	_logger = logger_i.NewLogger("Server")
)

type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	WorkerStop       chan bool
	Group            *sync.WaitGroup
	CloseServices    context.CancelFunc
	// StopBackground stops the session sweeper and anything else that is not a worker.
	StopBackground func()
}

// Routes registers every endpoint on the shared router.
func Routes(s config.Settings) http.Handler {
	r := utils.GetRouter(s.CORSOrigins)

	r.Router.Get("/healthz", middleware.HealthHandler)
	r.Router.Post("/search", middleware.SearchHandler)
	r.Router.Post("/chat", middleware.ChatHandler)
	r.Router.Get("/status/{id}", middleware.GetStatusHandler)
	r.Router.Post("/ingest", middleware.PostIngestHandler)
	r.Router.Get("/sessions", middleware.ListSessionsHandler)
	r.Router.Get("/sessions/{id}", middleware.GetSessionHandler)
	r.Router.Delete("/sessions/{id}", middleware.DeleteSessionHandler)
	r.Router.Get("/settings", middleware.GetSettingsHandler)
	return r.Router
}

func CreateServer(s config.Settings) {
	middleware.Init(s)
	server = &http.Server{
		Addr:         s.ListenAddr,
		Handler:      Routes(s),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	_logger.Info("Server is listening", "address", s.ListenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_logger.Error("Server crashed", "error", err, "addr", s.ListenAddr)
	}
}

func ShutDownHandler(shutdownParams ShutdownParams) {
	state := <-shutdownParams.GracefulShutdown
	_logger.Info("Server is shutting down", "signal", state.String())

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		if server != nil {
			server.SetKeepAlivesEnabled(false)
			if err := server.Shutdown(ctx); err != nil {
				_logger.Error("Could not shutdown gracefully", "error", err)
			}
		}

		//close workers
		close(shutdownParams.WorkerStop)
		shutdownParams.Group.Wait()
		if shutdownParams.StopBackground != nil {
			shutdownParams.StopBackground()
		}
		shutdownParams.CloseServices()
		close(shutdownParams.StopExecution)
		close(done)
	}()

	select {
	case <-done:
		_logger.Info("Shut down gracefully")
	case <-ctx.Done():
		_logger.Info("Force Shut down")
		os.Exit(1)
	}
}
