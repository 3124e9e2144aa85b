package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakejscott/phoneverify"
)

const maxBodyBytes = 1 << 16

// Service is the engine surface the handlers need. *phoneverify.Engine
// satisfies it.
type Service interface {
	Start(ctx context.Context, phone string) (uuid.UUID, error)
	Check(ctx context.Context, id uuid.UUID, code string) error
	Status(ctx context.Context, id uuid.UUID) (*phoneverify.StatusResult, error)
}

type Handler struct {
	service  Service
	validate *validator.Validate
	log      *zap.Logger
}

func NewHandler(service Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
}

// decode reads and validates a JSON body. It writes the error response and
// returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("verify request failed",
			zap.String("op", op),
			zap.String("request_id", requestID(r)),
			zap.Error(err),
		)
	}
	writeError(w, status, message)
}

// Start handles POST /verify/start.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.service.Start(r.Context(), req.Phone)
	if err != nil {
		h.fail(w, r, "start", err)
		return
	}
	writeJSON(w, http.StatusOK, StartResponse{ID: id})
}

// Check handles POST /verify/check.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.Check(r.Context(), uuid.MustParse(req.ID), req.Code); err != nil {
		h.fail(w, r, "check", err)
		return
	}
	writeJSON(w, http.StatusOK, CheckResponse{Verified: true})
}

// Status handles POST /verify/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.status(w, r, uuid.MustParse(req.ID))
}

// StatusByID handles GET /verify/{id}.
func (h *Handler) StatusByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, msgIDInvalid)
		return
	}
	h.status(w, r, id)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	res, err := h.service.Status(r.Context(), id)
	if err != nil {
		h.fail(w, r, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		ID:       res.ID,
		Phone:    res.Phone,
		Created:  res.Created,
		Verified: res.Verified,
	})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
