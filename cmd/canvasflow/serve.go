package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/canvasflow/canvasflow"
	"github.com/canvasflow/canvasflow/internal/metrics"
	httpadapter "github.com/canvasflow/canvasflow/pkg/adapters/http"
	"github.com/canvasflow/canvasflow/pkg/domain"
)

var serveCmd = &cobra.Command{
	Use:   "serve <flow-id>",
	Short: "Serve a flow's editing and debug API over HTTP",
	Long: `Opens the flow in a workspace and exposes it over HTTP: graph edits,
undo, validation, publish, debug runs, live updates over SSE on
/api/events, and Prometheus metrics on /metrics.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, _, err := loadFlow(cmd, args[0])
		if err != nil {
			return err
		}

		port, _ := cmd.Flags().GetString("port")
		logger := newLogger(cmd)

		streams := httpadapter.NewStreamManager()
		collector := metrics.New()
		hooks := domain.MergeHooks(
			collector.Hooks(),
			httpadapter.BroadcastHooks(streams, flow.ID),
		)

		ws, err := newWorkspace(cmd, flow,
			canvasflow.WithLifecycleHooks(hooks),
			canvasflow.Autonomous(),
		)
		if err != nil {
			return err
		}
		defer ws.Close(context.WithoutCancel(cmd.Context()))

		mux := chi.NewRouter()
		mux.Mount("/", httpadapter.NewHandler(ws, streams, logger))
		mux.Handle("/metrics", collector.Handler())

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: mux,
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Printf("Starting canvasflow server on %s (flow %s)\n", srv.Addr, flow.ID)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			fmt.Println("Canvasflow server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
}
