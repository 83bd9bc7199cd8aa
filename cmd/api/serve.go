package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/customHttpClient"
	"github.com/akolanti/HybridRAG/internal/data/store"
	"github.com/akolanti/HybridRAG/internal/domain/jobModel"
	"github.com/akolanti/HybridRAG/internal/handlers"
	"github.com/akolanti/HybridRAG/internal/job"
	"github.com/akolanti/HybridRAG/internal/rag/indexer"
	"github.com/akolanti/HybridRAG/internal/rag/ingest"
	"github.com/akolanti/HybridRAG/internal/server"
	"github.com/akolanti/HybridRAG/internal/worker"
	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var listenAddr, dir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := root.settings
			if listenAddr != "" {
				s.ListenAddr = listenAddr
			}
			return serve(s, dir)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen-addr", "", "server listen address (overrides LISTEN_ADDR)")
	cmd.Flags().StringVar(&dir, "dir", "", "documentation directory to ingest at startup")
	return cmd
}

func serve(s config.Settings, dir string) error {
	var (
		stopWorkerChannel = make(chan bool, 1)
		workerWaitGroup   sync.WaitGroup
	)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	a, err := buildApp(serviceContext, s, buildOptions{requireLLM: true})
	if err != nil {
		logger.Error("One or more external services failed to initialize. Shutting down.", "error", err)
		return err
	}
	a.warm(serviceContext)

	//buffered job channel and dispatcher signal are allocated by the service
	serviceConfig := job.ServiceConfig{
		JobStore: newJobStore(serviceContext, a),
		Sessions: a.sessions,
	}
	logger.Info("Starting job service", "vector_backend", s.VectorBackend, "session_backend", s.SessionBackend)
	service := job.InitJobService(serviceConfig)

	if a.memory != nil {
		a.memory.Start(serviceContext)
	}
	if dir != "" {
		go startupIngest(serviceContext, a, dir)
	}

	handlers.InitHandlers(handlers.Deps{
		Jobs:         service,
		Search:       a.rag,
		Sessions:     a.sessions,
		Settings:     s,
		HealthChecks: a.checks,
	})

	//init worker pool
	worker.InitServices(service, a.rag)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
		StopBackground: func() {
			if a.memory != nil {
				a.memory.Close()
			}
			customHttpClient.CloseIdle()
		},
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(s)

	<-stopExecution
	logger.Info("Server stopped")
	return nil
}

// newJobStore prefers redis so job status survives a restart.
func newJobStore(ctx context.Context, a *app) jobModel.JobStore {
	js, err := store.GetRedisJobStore(ctx, a.settings.Redis)
	if err != nil {
		logger.Error("Redis job store is offline, using in-memory jobs", "error", err)
		return store.InitInMemoryJobStore()
	}
	a.addRedisCheck(ctx, config.RedisJobStore, "jobs")
	return js
}

func startupIngest(ctx context.Context, a *app, dir string) {
	docs, failed, err := ingest.LoadDocuments(ctx, dir, nil)
	if err != nil {
		logger.Error("startup ingest failed", "dir", dir, "error", err)
		return
	}
	report, err := a.indexer.IngestDocuments(ctx, docs, indexer.ModeIncremental)
	if err != nil {
		logger.Error("startup ingest failed", "dir", dir, "error", err)
		return
	}
	logger.Info("startup ingest finished", "dir", dir, "documents", len(docs), "failed_files", len(failed),
		"indexed", report.Indexed, "already_present", report.AlreadyPresent, "skipped", len(report.Skipped))
}
