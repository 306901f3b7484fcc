package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"notes-api/internal/auth"
	"notes-api/internal/metrics"
	"notes-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/graphql-go"
)

// maxRequestBytes caps a POST body.
const maxRequestBytes = 1 << 20

// Request is a GraphQL-over-HTTP request body.
type Request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

var errBadRequest = errors.New("graph: malformed request")

// decodeRequest reads a GET query string or a JSON POST body.
func decodeRequest(r *http.Request, w http.ResponseWriter) (Request, error) {
	var req Request
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if v := q.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
				return Request{}, fmt.Errorf("%w: variables: %v", errBadRequest, err)
			}
		}
	case http.MethodPost:
		ct := r.Header.Get("Content-Type")
		if i := strings.IndexByte(ct, ';'); i >= 0 {
			ct = ct[:i]
		}
		if !strings.EqualFold(strings.TrimSpace(ct), "application/json") {
			return Request{}, fmt.Errorf("%w: unsupported content type %q", errBadRequest, ct)
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
		if err != nil {
			return Request{}, fmt.Errorf("%w: read body: %v", errBadRequest, err)
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return Request{}, fmt.Errorf("%w: decode body: %v", errBadRequest, err)
		}
	default:
		return Request{}, fmt.Errorf("%w: method %s", errBadRequest, r.Method)
	}
	return req, nil
}

// Handler serves GraphQL. Every request runs build, gate, then execute; a
// request that fails an earlier step never reaches a resolver.
type Handler struct {
	schema  *graphql.Schema
	gate    *Gate
	builder *Builder
}

func NewHandler(schema *graphql.Schema, gate *Gate, builder *Builder) *Handler {
	return &Handler{schema: schema, gate: gate, builder: builder}
}

// Mount registers GET and POST on path.
func (h *Handler) Mount(r gin.IRouter, path string) {
	r.GET(path, h.ServeGraphQL)
	r.POST(path, h.ServeGraphQL)
}

func (h *Handler) ServeGraphQL(c *gin.Context) {
	start := time.Now()
	log := logger.FromGin(c)

	rc, err := h.builder.Build(c.Request)
	if err != nil {
		// The credential itself is never logged.
		log.Warn("graphql session rejected", "err", err)
		metrics.IncSessionInvalid()
		metrics.ObserveGraphQL(start, metrics.OutcomeUnauthenticated)
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorEnvelope(CodeUnauthenticated, auth.ErrSessionInvalid.Error()))
		return
	}

	req, err := decodeRequest(c.Request, c.Writer)
	if err != nil {
		log.Info("graphql bad request", "err", err)
		metrics.ObserveGraphQL(start, metrics.OutcomeBadRequest)
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorEnvelope(CodeBadRequest, err.Error()))
		return
	}

	if rej := h.gate.Check(req, c.Request.Method == http.MethodGet); rej != nil {
		log.Info("graphql query rejected", "rule", rej.Rule, "operation", req.OperationName)
		metrics.IncGateRejection(rej.Rule)
		metrics.ObserveGraphQL(start, metrics.OutcomeRejected)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"errors": rej.Errors})
		return
	}

	ctx := WithContext(c.Request.Context(), rc)
	resp := h.schema.Exec(ctx, req.Query, req.OperationName, req.Variables)
	metrics.ObserveGraphQL(start, metrics.OutcomeExecuted)
	c.JSON(http.StatusOK, resp)
}
