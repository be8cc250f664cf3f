package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/EnzoMH/cradcrawl-enrich/internal/enrich"
	"github.com/EnzoMH/cradcrawl-enrich/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for enrichment jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		mux := newServeMux(ctx, env)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newServeMux(ctx context.Context, env *appEnv) *http.ServeMux {
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Fire-and-poll: starting a batch returns the job id immediately;
	// progress comes from GET /jobs/{id}.
	mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name        string   `json:"name"`
			Requester   string   `json:"requester"`
			OrgIDs      []string `json:"org_ids"`
			Concurrency int      `json:"concurrency"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			req.Name = "api-batch"
		}

		// Jobs outlive the request; they run on the server context so a
		// shutdown still stops them.
		j := env.Orchestrator.Start(ctx, req.Name, req.Requester, req.OrgIDs, req.Concurrency)
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": j.ID()})
	})

	mux.HandleFunc("GET /jobs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, env.Orchestrator.Registry().List())
	})

	mux.HandleFunc("GET /jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		j := env.Orchestrator.Registry().Get(r.PathValue("id"))
		if j == nil {
			http.Error(w, `{"error":"job not found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, j.Snapshot())
	})

	mux.HandleFunc("POST /jobs/{id}/stop", func(w http.ResponseWriter, r *http.Request) {
		j := env.Orchestrator.Registry().Get(r.PathValue("id"))
		if j == nil {
			http.Error(w, `{"error":"job not found"}`, http.StatusNotFound)
			return
		}
		j.Stop()
		writeJSON(w, http.StatusOK, j.Snapshot())
	})

	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		candidates, err := enrich.ListCandidates(r.Context(), env.Store, store.CandidateFilter{})
		if err != nil {
			zap.L().Error("stats query failed", zap.Error(err))
			http.Error(w, `{"error":"stats query failed"}`, http.StatusInternalServerError)
			return
		}
		s := enrich.Stats(candidates)
		writeJSON(w, http.StatusOK, map[string]any{
			"candidates":  s.Total,
			"by_priority": s.ByPriority,
			"by_grade":    s.ByGrade,
		})
	})

	mux.HandleFunc("POST /enrich", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OrgID string `json:"org_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.OrgID == "" {
			http.Error(w, `{"error":"org_id is required"}`, http.StatusBadRequest)
			return
		}

		outcome := env.Enricher.EnrichByID(r.Context(), req.OrgID)
		writeJSON(w, http.StatusOK, outcome)
	})

	return mux
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
