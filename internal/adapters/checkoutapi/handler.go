package checkoutapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"shipflow/internal/fieldpath"
	"shipflow/pkg/domain"
)

const maxBodyBytes = 1 << 20

// Handler exposes a Service over HTTP.
type Handler struct {
	Service *Service
}

// NewHandler constructs a checkout API handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Service: svc}
}

type meta struct {
	RequestID      string    `json:"requestId"`
	Timestamp      time.Time `json:"timestamp"`
	ProcessingTime float64   `json:"processingTime"`
}

type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    meta      `json:"meta"`
}

// exchange carries per-request envelope metadata.
type exchange struct {
	h     *Handler
	w     http.ResponseWriter
	r     *http.Request
	id    string
	start time.Time
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "checkout service not configured"})
		return
	}
	x := &exchange{h: h, w: w, r: r, id: h.Service.newID(), start: h.Service.clock.Now()}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch path {
	case "/api/form-config":
		if x.allow(http.MethodGet) {
			x.ok(h.Service.FormConfig())
		}
	case "/api/quote":
		if x.allow(http.MethodPost) {
			h.handleQuote(x)
		}
	case "/api/pickup-availability":
		if x.allow(http.MethodPost) {
			h.handleAvailability(x)
		}
	case "/api/submit-shipment":
		if x.allow(http.MethodPost) {
			h.handleSubmit(x)
		}
	case "/api/tasks/validate":
		if x.allow(http.MethodPost) {
			h.handleValidateTask(x)
		}
	case "/api/tasks/execute":
		if x.allow(http.MethodPost) {
			h.handleExecuteTask(x)
		}
	default:
		x.fail(&APIError{Status: http.StatusNotFound, Code: CodeNotFound, Message: "endpoint not found"})
	}
}

func (h *Handler) handleQuote(x *exchange) {
	var record fieldpath.Record
	if !x.decode(&record) {
		return
	}
	options, err := h.Service.Quote(record)
	if err != nil {
		x.fail(err)
		return
	}
	x.ok(map[string]any{"options": options})
}

type availabilityRequest struct {
	Zip  string `json:"zip"`
	Days int    `json:"days"`
}

func (h *Handler) handleAvailability(x *exchange) {
	var req availabilityRequest
	if !x.decode(&req) {
		return
	}
	days, err := h.Service.PickupAvailability(req.Zip, req.Days)
	if err != nil {
		x.fail(err)
		return
	}
	x.ok(map[string]any{"availability": days})
}

func (h *Handler) handleSubmit(x *exchange) {
	var tx domain.ShippingTransaction
	if !x.decode(&tx) {
		return
	}
	receipt, err := h.Service.SubmitShipment(x.r.Context(), tx)
	if err != nil {
		x.fail(err)
		return
	}
	x.ok(receipt)
}

type validateTaskRequest struct {
	Domain string           `json:"domain"`
	Data   fieldpath.Record `json:"data"`
}

func (h *Handler) handleValidateTask(x *exchange) {
	var req validateTaskRequest
	if !x.decode(&req) {
		return
	}
	res, err := h.Service.ValidateTask(req.Domain, req.Data)
	if err != nil {
		x.fail(err)
		return
	}
	x.ok(res)
}

type executeTaskRequest struct {
	Scenario string `json:"scenario"`
}

func (h *Handler) handleExecuteTask(x *exchange) {
	var req executeTaskRequest
	if !x.decode(&req) {
		return
	}
	sc, err := h.Service.ExecuteTask(req.Scenario)
	if err != nil {
		x.fail(err)
		return
	}
	x.ok(sc)
}

func (x *exchange) allow(method string) bool {
	if x.r.Method == method {
		return true
	}
	x.w.Header().Set("Allow", method)
	x.fail(&APIError{Status: http.StatusMethodNotAllowed, Code: CodeMethodNotAllowed, Message: "method not allowed"})
	return false
}

// decode reads a JSON body into v. Empty and malformed bodies are schema failures.
func (x *exchange) decode(v any) bool {
	dec := json.NewDecoder(io.LimitReader(x.r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		msg := "request body must be valid JSON"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		x.fail(&APIError{Status: http.StatusBadRequest, Code: CodeSchema, Message: msg, Details: map[string]any{"cause": err.Error()}})
		return false
	}
	return true
}

func (x *exchange) ok(data any) {
	x.write(http.StatusOK, envelope{Success: true, Data: data})
}

func (x *exchange) fail(err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		x.h.Service.logger.Error("checkout api request failed", "path", x.r.URL.Path, "request", x.id, "err", err)
		apiErr = &APIError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal error"}
	}
	x.write(apiErr.Status, envelope{Error: apiErr})
}

func (x *exchange) write(status int, env envelope) {
	now := x.h.Service.clock.Now()
	env.Meta = meta{
		RequestID:      x.id,
		Timestamp:      now,
		ProcessingTime: float64(now.Sub(x.start)) / float64(time.Millisecond),
	}
	x.h.Service.logger.Debug("checkout api", slog.String("method", x.r.Method), slog.String("path", x.r.URL.Path), slog.Int("status", status), slog.String("request", x.id))
	writeJSON(x.w, status, env)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
