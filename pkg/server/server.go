// Package server provides the http api: range scans, ad-hoc queries, health and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/umputun/sqlextras/pkg/metrics"
	"github.com/umputun/sqlextras/pkg/query"
)

const (
	contentTypeJSON = "application/json"
	defaultLimit    = 1000
	maxLimit        = 100000
	shutdownTimeout = 5 * time.Second
)

// Server serves the api over a database exposing the range table.
type Server struct {
	Listen     string
	Timeout    time.Duration
	DB         query.Querier
	RangeTable string // name the range table is exposed under
	Version    string
}

// Run starts the http server and blocks until ctx is canceled or the server fails.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.Listen,
		Handler:           s.Routes(),
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       s.Timeout,
		WriteTimeout:      s.Timeout,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(sctx); err != nil {
			log.Printf("[WARN] can't shutdown http server, %v", err)
		}
	}()

	log.Printf("[INFO] http server listen on %s", s.Listen)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Routes makes the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer, metrics.HTTP)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/range", s.handleRange)
	r.Post("/query", s.handleQuery)
	return r
}

// Response is the api response envelope.
type Response struct {
	Status  string   `json:"status,omitempty"`
	Version string   `json:"version,omitempty"`
	Columns []string `json:"columns,omitempty"`
	Rows    [][]any  `json:"rows,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// RangeRow is a single row of /range.
type RangeRow struct {
	Rowid int64 `json:"rowid"`
	Value int64 `json:"value"`
}

// QueryRequest is the body of /query.
type QueryRequest struct {
	SQL string `json:"sql"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Response{Status: "ok", Version: s.Version})
}

// GET /range?start=1&stop=10&step=2&order=desc&limit=100
func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	intParam := func(name string, def int64) (int64, error) {
		v := q.Get(name)
		if v == "" {
			return def, nil
		}
		res, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("bad %s %q", name, v)
		}
		return res, nil
	}

	if q.Get("stop") == "" {
		writeJSON(w, http.StatusBadRequest, Response{Error: "stop is required"})
		return
	}
	var params [4]int64
	for i, p := range []struct {
		name string
		def  int64
	}{{"start", 0}, {"stop", 0}, {"step", 1}, {"limit", defaultLimit}} {
		v, err := intParam(p.name, p.def)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Response{Error: err.Error()})
			return
		}
		params[i] = v
	}
	limit := min(max(params[3], 1), maxLimit)

	order := strings.ToUpper(q.Get("order"))
	switch order {
	case "":
		order = "ASC"
	case "ASC", "DESC":
	default:
		writeJSON(w, http.StatusBadRequest, Response{Error: fmt.Sprintf("bad order %q", q.Get("order"))})
		return
	}

	table := s.RangeTable
	if table == "" {
		table = "range"
	}
	stmt := fmt.Sprintf(`SELECT rowid, value FROM "%s"(?, ?, ?) ORDER BY value %s LIMIT ?`,
		strings.ReplaceAll(table, `"`, `""`), order)
	rows, err := s.DB.QueryContext(r.Context(), stmt, params[0], params[1], params[2], limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}
	defer rows.Close() // nolint

	res := []RangeRow{}
	for rows.Next() {
		var rr RangeRow
		if err := rows.Scan(&rr.Rowid, &rr.Value); err != nil {
			writeJSON(w, http.StatusInternalServerError, Response{Error: err.Error()})
			return
		}
		res = append(res, rr)
	}
	if err := rows.Err(); err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Rows []RangeRow `json:"rows"`
	}{Rows: res})
}

// POST /query {"sql": "SELECT ..."}
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req := QueryRequest{}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: fmt.Sprintf("can't decode request: %v", err)})
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeJSON(w, http.StatusBadRequest, Response{Error: "sql is required"})
		return
	}

	runner := query.Runner{DB: s.DB, Concurrency: 1}
	res, _ := runner.Run(r.Context(), []string{req.SQL})
	if res[0].Err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, Response{Error: res[0].Err.Error()})
		return
	}
	for _, row := range res[0].Rows {
		for i, v := range row {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			}
		}
	}
	writeJSON(w, http.StatusOK, Response{Status: "ok", Columns: res[0].Columns, Rows: res[0].Rows})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[WARN] can't encode response, %v", err)
	}
}
