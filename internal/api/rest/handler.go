package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/oshokin/update-manifest/internal/domain/news"
	"github.com/oshokin/update-manifest/internal/logger"
	"github.com/oshokin/update-manifest/internal/service/builder"
)

const (
	// ManifestPath is the route of the manifest endpoint.
	ManifestPath = "/updater"
	// NewsPath is the route of the news feed.
	NewsPath = "/news"
	// FilesPath is the route prefix of the published files.
	FilesPath = "/files/"

	// SkippedHeader carries the number of files left out of an incomplete manifest.
	SkippedHeader = "X-Manifest-Skipped"
)

// Provider returns the manifest to serve.
type Provider interface {
	Current(ctx context.Context) (*builder.Result, error)
}

// Options configures the HTTP handler.
type Options struct {
	// Provider supplies the manifest.
	Provider Provider
	// RootDir is served under FilesPath when not empty.
	RootDir string
	// DefaultLocale is used for unknown news locales.
	DefaultLocale news.Locale
}

// handler serves the HTTP endpoints.
type handler struct {
	// provider supplies the manifest.
	provider Provider
	// defaultLocale is used for unknown news locales.
	defaultLocale news.Locale
}

// NewHandler wires the endpoints into a ServeMux wrapped with request logging.
func NewHandler(ctx context.Context, opts *Options) http.Handler {
	h := &handler{
		provider:      opts.Provider,
		defaultLocale: opts.DefaultLocale,
	}

	if h.defaultLocale == "" {
		h.defaultLocale = news.DefaultLocale
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+ManifestPath, h.handleManifest)
	mux.HandleFunc("GET "+NewsPath, h.handleNews)

	if opts.RootDir != "" {
		mux.Handle("GET "+FilesPath, http.StripPrefix(
			strings.TrimSuffix(FilesPath, "/"),
			http.FileServer(http.Dir(opts.RootDir)),
		))
	}

	return withRequestLogging(ctx, mux)
}

// handleManifest writes the current manifest or a 503 when none can be produced.
func (h *handler) handleManifest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.provider.Current(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Manifest unavailable", "error", err)
		writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})

		return
	}

	if !result.Complete() {
		w.Header().Set(SkippedHeader, strconv.Itoa(len(result.Skipped)))
	}

	writeJSON(ctx, w, http.StatusOK, result.Manifest)
}

// handleNews writes the news feed for the requested locale.
func (h *handler) handleNews(w http.ResponseWriter, r *http.Request) {
	locale, ok := news.ParseLocale(r.URL.Query().Get("lang"))
	if !ok {
		locale = h.defaultLocale
	}

	writeJSON(r.Context(), w, http.StatusOK, news.Feed(locale))
}

// errorResponse is the body of failed requests.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes body with the given status.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to encode response", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err = w.Write(data); err != nil {
		logger.DebugKV(ctx, "Failed to write response", "error", err)
	}
}
