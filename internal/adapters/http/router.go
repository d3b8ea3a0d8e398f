package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/ports"
)

// Router is the read-only API over the clean view and the failure log.
// Ingestion happens over IMAP, never through HTTP.
type Router struct {
	clean    ports.CleanReader
	failures ports.FailureLog
	detector ports.AnomalyDetector
	logger   *slog.Logger
}

func NewRouter(clean ports.CleanReader, failures ports.FailureLog, detector ports.AnomalyDetector, logger *slog.Logger) *Router {
	return &Router{clean: clean, failures: failures, detector: detector, logger: logger}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/products", rt.listProducts)
	mux.HandleFunc("/v1/products/", rt.listProductNavs)
	mux.HandleFunc("/v1/failures", rt.listFailures)
	mux.HandleFunc("/v1/anomalies", rt.listAnomalies)
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) listProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	products, err := rt.clean.ListProducts(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (rt *Router) listProductNavs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/products/")
	code, tail, _ := strings.Cut(rest, "/")
	if code == "" || (tail != "" && tail != "navs") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	records, err := rt.clean.ListByProduct(r.Context(), code)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if len(records) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown product code"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_code": code, "records": records})
}

func (rt *Router) listFailures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	failures, err := rt.failures.List(r.Context(), limit)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"failures": failures})
}

// listAnomalies runs the detectors over the primary store. Read-only:
// it never rebuilds the clean view; it exposes the identity report
// that exists nowhere else.
func (rt *Router) listAnomalies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	report, err := rt.detector.Detect(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"range_anomalies":    report.RangeAnomalies,
		"identity_anomalies": report.IdentityAnomalies,
	})
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("response_encode_error", "error", err)
	}
}
