// Package httpapi exposes the registry over REST.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	svcerrors "github.com/R3E-Network/attestation_layer/internal/errors"
	"github.com/R3E-Network/attestation_layer/internal/httputil"
	"github.com/R3E-Network/attestation_layer/internal/logging"
	"github.com/R3E-Network/attestation_layer/internal/metrics"
	"github.com/R3E-Network/attestation_layer/internal/middleware"
	"github.com/R3E-Network/attestation_layer/internal/mirror"
	"github.com/R3E-Network/attestation_layer/internal/registry"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Options configures the router.
type Options struct {
	Service *registry.Service
	// Mirror serves ?source=mirror listings; nil disables them.
	Mirror      mirror.Store
	Logger      *logging.Logger
	RateLimiter *middleware.RateLimiter
	CORSOrigins []string
	// ReadOnly omits the write endpoints.
	ReadOnly bool
}

// handler bundles HTTP endpoints for the registry service.
type handler struct {
	svc    *registry.Service
	mirror mirror.Store
	log    *logging.Logger
}

// NewRouter returns the REST API with its middleware chain.
func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}
	h := &handler{svc: opts.Service, mirror: opts.Mirror, log: opts.Logger}

	r := mux.NewRouter()
	r.Use(middleware.TracingMiddleware, middleware.RecoveryMiddleware(opts.Logger), middleware.LoggingMiddleware(opts.Logger), middleware.MetricsMiddleware())

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()
	if opts.RateLimiter != nil {
		api.Use(opts.RateLimiter.Handler)
	}
	api.HandleFunc("/schemas", h.listHandler(registry.KindSchema)).Methods(http.MethodGet)
	api.HandleFunc("/attestations", h.listHandler(registry.KindAttestation)).Methods(http.MethodGet)
	api.HandleFunc("/objects/{id}", h.getObject).Methods(http.MethodGet)
	if !opts.ReadOnly {
		api.HandleFunc("/schemas", h.createSchema).Methods(http.MethodPost)
		api.HandleFunc("/attestations", h.createAttestation).Methods(http.MethodPost)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, svcerrors.NotFound("route", r.URL.Path))
	})

	// Preflight requests match no route, so CORS wraps the router itself.
	if len(opts.CORSOrigins) > 0 {
		return middleware.NewCORSMiddleware(opts.CORSOrigins).Handler(r)
	}
	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// Writes
// =============================================================================

type createSchemaRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Definition  json.RawMessage `json:"definition"`
}

func (h *handler) createSchema(w http.ResponseWriter, r *http.Request) {
	var req createSchemaRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.CreateSchema(r.Context(), registry.SchemaInput{
		Name:        req.Name,
		Description: req.Description,
		Definition:  jsonText(req.Definition),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

type createAttestationRequest struct {
	SchemaID string `json:"schema_id"`
	Subject  string `json:"subject"`
	// Hash is a hex digest; Data is hashed with blake2b-256 when Hash is absent.
	Hash string          `json:"hash"`
	Data json.RawMessage `json:"data"`
}

func (h *handler) createAttestation(w http.ResponseWriter, r *http.Request) {
	var req createAttestationRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	var hash []byte
	switch {
	case req.Hash != "" && len(req.Data) > 0:
		httputil.BadRequest(w, "hash and data are mutually exclusive")
		return
	case req.Hash != "":
		decoded, err := registry.DecodeHex(req.Hash)
		if err != nil || len(decoded) == 0 {
			httputil.BadRequest(w, "hash must be hex encoded")
			return
		}
		hash = decoded
	case len(req.Data) > 0:
		hash = registry.HashPayload([]byte(jsonText(req.Data)))
	default:
		httputil.BadRequest(w, "hash or data is required")
		return
	}

	res, err := h.svc.CreateAttestation(r.Context(), registry.AttestationInput{
		SchemaID: req.SchemaID,
		Subject:  req.Subject,
		Hash:     hash,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

// jsonText returns the string content of a JSON string, or the raw JSON otherwise.
func jsonText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// =============================================================================
// Reads
// =============================================================================

func (h *handler) listHandler(kind registry.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		limit, err := parseLimit(q.Get("limit"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		var cursor *string
		if c := q.Get("cursor"); c != "" {
			cursor = &c
		}
		owner := strings.TrimSpace(q.Get("owner"))

		if q.Get("source") == "mirror" {
			h.listMirror(w, r, kind, owner, limit, cursor)
			return
		}

		page, err := h.svc.ListRecords(r.Context(), kind, registry.ListOptions{
			Limit:        limit,
			Cursor:       cursor,
			Owner:        owner,
			WaitForIndex: q.Get("wait_for_index") == "true",
		})
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, page)
	}
}

// listMirror pages the mirror by offset; the cursor is the decimal offset.
func (h *handler) listMirror(w http.ResponseWriter, r *http.Request, kind registry.Kind, owner string, limit int, cursor *string) {
	if h.mirror == nil {
		httputil.BadRequest(w, "mirror is not configured")
		return
	}
	offset := 0
	if cursor != nil {
		n, err := strconv.Atoi(*cursor)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "invalid mirror cursor")
			return
		}
		offset = n
	}

	recs, err := h.mirror.List(r.Context(), mirror.Query{Kind: kind, Owner: owner, Limit: limit + 1, Offset: offset})
	if err != nil {
		h.log.Error(r.Context(), "mirror list failed", err, map[string]interface{}{"kind": string(kind)})
		httputil.WriteError(w, svcerrors.Internal("mirror query failed", err))
		return
	}

	page := registry.Page[registry.Record]{Items: recs}
	if len(recs) > limit {
		page.Items = recs[:limit]
		page.HasNextPage = true
		next := strconv.Itoa(offset + limit)
		page.NextCursor = &next
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *handler) getObject(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetObjectByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return DefaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > MaxListLimit {
		return 0, svcerrors.BadRequest("limit must be an integer between 1 and 100")
	}
	return n, nil
}
