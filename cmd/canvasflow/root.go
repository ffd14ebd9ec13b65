package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/canvasflow/canvasflow"
	"github.com/canvasflow/canvasflow/internal/logging"
	"github.com/canvasflow/canvasflow/pkg/adapters/file"
	httpadapter "github.com/canvasflow/canvasflow/pkg/adapters/http"
	"github.com/canvasflow/canvasflow/pkg/adapters/redis"
	"github.com/canvasflow/canvasflow/pkg/domain"
)

var rootCmd = &cobra.Command{
	Use:   "canvasflow",
	Short: "Canvasflow is a graph-state engine for visual flow editing",
	Long: `Canvasflow edits, validates and debugs conversational flows: graphs of
model, branch and tool nodes stored as YAML documents and executed by a
remote streaming engine.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", "", "Directory containing flow YAML files (default .canvasflow/flows)")
	rootCmd.PersistentFlags().String("engine", "", "Base URL of the remote execution engine (empty = offline)")
	rootCmd.PersistentFlags().String("redis", "", "Redis address for shared transcripts and run locks (empty = in-memory)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return logging.New(level)
}

// loadFlow reads the named flow from the configured directory.
func loadFlow(cmd *cobra.Command, flowID string) (*domain.Flow, *file.Store, error) {
	dir, _ := cmd.Flags().GetString("dir")
	store := file.New(dir)
	flow, err := store.LoadFlow(cmd.Context(), flowID)
	if err != nil {
		return nil, nil, fmt.Errorf("load flow %q: %w", flowID, err)
	}
	return flow, store, nil
}

// newWorkspace assembles a workspace from the persistent flags: remote
// engine client when --engine is set, Redis transcript store and run lock
// when --redis is set, in-memory fallbacks otherwise.
func newWorkspace(cmd *cobra.Command, flow *domain.Flow, extra ...canvasflow.Option) (*canvasflow.Workspace, error) {
	logger := newLogger(cmd)
	opts := []canvasflow.Option{canvasflow.WithLogger(logger)}

	if engineURL, _ := cmd.Flags().GetString("engine"); engineURL != "" {
		client := httpadapter.NewClient(engineURL, httpadapter.WithClientLogger(logger))
		opts = append(opts,
			canvasflow.WithFlowService(client),
			canvasflow.WithStreamer(client),
		)
	}

	if redisAddr, _ := cmd.Flags().GetString("redis"); redisAddr != "" {
		client := backend.NewClient(&backend.Options{Addr: redisAddr})
		opts = append(opts,
			canvasflow.WithTranscriptStore(redis.NewFromClient(client, redis.WithTTL(30*24*time.Hour))),
			canvasflow.WithLocker(redis.NewLocker(client, "canvasflow:")),
		)
	}

	opts = append(opts, extra...)
	return canvasflow.New(flow, opts...)
}
