package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"personring/internal/people/models"
	"personring/internal/people/service"
	"personring/internal/platform/middleware"
	dErrors "personring/pkg/domain-errors"
	"personring/pkg/platform/httputil"
)

// Service defines the interface for personhood registry operations.
type Service interface {
	ReserveNewID(ctx context.Context) (models.PersonalID, error)
	CancelIDReservation(ctx context.Context, id models.PersonalID) error
	RenewIDReservation(ctx context.Context, id models.PersonalID) error
	RecognizePersonhood(ctx context.Context, id models.PersonalID, key *models.MemberKey) error
	RecognizeNewPerson(ctx context.Context, key models.MemberKey) (models.PersonalID, error)
	ForceRecognizePersonhood(ctx context.Context, keys []models.MemberKey) ([]models.PersonalID, error)
	SetOnboardingSize(ctx context.Context, size uint32) error

	OnboardPeople(ctx context.Context) error
	BuildRing(ctx context.Context, ringIndex models.RingIndex, limit uint32) error
	MergeRings(ctx context.Context, baseIndex, donorIndex models.RingIndex) error
	MergeQueuePages(ctx context.Context) error

	StartMutationSession(ctx context.Context) (uuid.UUID, error)
	SuspendPersonhood(ctx context.Context, token uuid.UUID, ids []models.PersonalID) error
	EndMutationSession(ctx context.Context, token uuid.UUID) error

	MigrateOnboardingKey(ctx context.Context, id models.PersonalID, newKey models.MemberKey) error
	MigrateIncludedKey(ctx context.Context, id models.PersonalID, newKey models.MemberKey) error
	PendingMigration(ctx context.Context, id models.PersonalID) (*models.MemberKey, error)

	SetPersonalIDAccount(ctx context.Context, id models.PersonalID, account string) error
	UnsetPersonalIDAccount(ctx context.Context, id models.PersonalID) error

	Person(ctx context.Context, id models.PersonalID) (*models.PersonRecord, error)
	RingInfo(ctx context.Context, ringIndex models.RingIndex) (*service.RingView, error)
	QueuePage(ctx context.Context, page models.PageIndex) ([]models.MemberKey, error)
	Status(ctx context.Context) (service.StatusView, error)
}

// Handler handles personhood registry endpoints.
type Handler struct {
	logger     *slog.Logger
	svc        Service
	adminToken string
}

// New creates a new registry Handler.
func New(svc Service, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{
		logger:     logger,
		svc:        svc,
		adminToken: adminToken,
	}
}

// Register registers the registry routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/people/recognize", h.handleRecognize)
	r.Post("/people/onboard", h.handleOnboard)
	r.Get("/people/{id}", h.handleGetPerson)
	r.Get("/people/{id}/migration", h.handleGetMigration)
	r.Post("/people/{id}/migrate-key", h.handleMigrateKey)
	r.Put("/people/{id}/account", h.handleSetAccount)
	r.Delete("/people/{id}/account", h.handleUnsetAccount)

	r.Post("/rings/merge", h.handleMergeRings)
	r.Post("/rings/{ring}/build", h.handleBuildRing)
	r.Get("/rings/{ring}", h.handleGetRing)

	r.Post("/sessions", h.handleStartSession)
	r.Post("/sessions/suspend", h.handleSuspend)
	r.Post("/sessions/close", h.handleCloseSession)

	r.Get("/queue/pages/{page}", h.handleGetQueuePage)
	r.Post("/queue/merge-pages", h.handleMergeQueuePages)
	r.Get("/status", h.handleStatus)

	r.Route("/admin", func(ar chi.Router) {
		ar.Use(middleware.RequireAdminToken(h.adminToken, h.logger))
		ar.Post("/recognize", h.handleForceRecognize)
		ar.Put("/onboarding-size", h.handleSetOnboardingSize)
		ar.Post("/reservations", h.handleReserveID)
		ar.Delete("/reservations/{id}", h.handleCancelReservation)
		ar.Put("/reservations/{id}", h.handleRenewReservation)
	})
}

func (h *Handler) handleRecognize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req recognizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.ID == nil && req.Key == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "either id or key is required"))
		return
	}

	var key *models.MemberKey
	if req.Key != nil {
		parsed, err := models.ParseMemberKey(*req.Key)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid member key"))
			return
		}
		key = &parsed
	}

	if req.ID == nil {
		id, err := h.svc.RecognizeNewPerson(ctx, *key)
		if err != nil {
			h.writeServiceError(ctx, w, "recognize new person", err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, recognizedResponse{ID: uint64(id)})
		return
	}

	id := models.PersonalID(*req.ID)
	if err := h.svc.RecognizePersonhood(ctx, id, key); err != nil {
		h.writeServiceError(ctx, w, "recognize person", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recognizedResponse{ID: uint64(id)})
}

func (h *Handler) handleOnboard(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.OnboardPeople(r.Context()); err != nil {
		h.writeServiceError(r.Context(), w, "onboard people", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	id, ok := h.personalID(w, r)
	if !ok {
		return
	}
	record, err := h.svc.Person(r.Context(), id)
	if err != nil {
		h.writeServiceError(r.Context(), w, "get person", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPersonResponse(id, record))
}

func (h *Handler) handleGetMigration(w http.ResponseWriter, r *http.Request) {
	id, ok := h.personalID(w, r)
	if !ok {
		return
	}
	newKey, err := h.svc.PendingMigration(r.Context(), id)
	if err != nil {
		h.writeServiceError(r.Context(), w, "get pending migration", err)
		return
	}
	if newKey == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no migration staged"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, migrationResponse{NewKey: *newKey})
}

// handleMigrateKey dispatches on the person's current position: onboarding
// keys are swapped in place, included keys are staged for the next migration
// drain.
func (h *Handler) handleMigrateKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.personalID(w, r)
	if !ok {
		return
	}
	var req migrateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	newKey, err := models.ParseMemberKey(req.NewKey)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid member key"))
		return
	}

	record, err := h.svc.Person(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "migrate key", err)
		return
	}
	switch {
	case record.Position.Onboarding():
		err = h.svc.MigrateOnboardingKey(ctx, id, newKey)
	case record.Position.Included():
		err = h.svc.MigrateIncludedKey(ctx, id, newKey)
	default:
		err = models.ErrSuspended
	}
	if err != nil {
		h.writeServiceError(ctx, w, "migrate key", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.personalID(w, r)
	if !ok {
		return
	}
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Account == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "account is required"))
		return
	}
	if err := h.svc.SetPersonalIDAccount(r.Context(), id, req.Account); err != nil {
		h.writeServiceError(r.Context(), w, "set account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUnsetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.personalID(w, r)
	if !ok {
		return
	}
	if err := h.svc.UnsetPersonalIDAccount(r.Context(), id); err != nil {
		h.writeServiceError(r.Context(), w, "unset account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMergeRings(w http.ResponseWriter, r *http.Request) {
	var req mergeRingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	err := h.svc.MergeRings(r.Context(), models.RingIndex(req.Base), models.RingIndex(req.Donor))
	if err != nil {
		h.writeServiceError(r.Context(), w, "merge rings", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleBuildRing(w http.ResponseWriter, r *http.Request) {
	ring, ok := h.ringIndex(w, r)
	if !ok {
		return
	}
	var req buildRingRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}
	if err := h.svc.BuildRing(r.Context(), ring, req.Limit); err != nil {
		h.writeServiceError(r.Context(), w, "build ring", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetRing(w http.ResponseWriter, r *http.Request) {
	ring, ok := h.ringIndex(w, r)
	if !ok {
		return
	}
	view, err := h.svc.RingInfo(r.Context(), ring)
	if err != nil {
		h.writeServiceError(r.Context(), w, "get ring", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRingResponse(view))
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	token, err := h.svc.StartMutationSession(r.Context())
	if err != nil {
		h.writeServiceError(r.Context(), w, "start mutation session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sessionResponse{Token: token.String()})
}

func (h *Handler) handleSuspend(w http.ResponseWriter, r *http.Request) {
	var req suspendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	token, err := uuid.Parse(req.Token)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid session token"))
		return
	}
	ids := make([]models.PersonalID, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = models.PersonalID(id)
	}
	if err := h.svc.SuspendPersonhood(r.Context(), token, ids); err != nil {
		h.writeServiceError(r.Context(), w, "suspend personhood", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	var req closeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	token, err := uuid.Parse(req.Token)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid session token"))
		return
	}
	if err := h.svc.EndMutationSession(r.Context(), token); err != nil {
		h.writeServiceError(r.Context(), w, "close mutation session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetQueuePage(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "page")
	page, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid queue page"))
		return
	}
	keys, err := h.svc.QueuePage(r.Context(), models.PageIndex(page))
	if err != nil {
		h.writeServiceError(r.Context(), w, "get queue page", err)
		return
	}
	if keys == nil {
		keys = []models.MemberKey{}
	}
	httputil.WriteJSON(w, http.StatusOK, queuePageResponse{Page: uint32(page), Keys: keys})
}

func (h *Handler) handleMergeQueuePages(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MergeQueuePages(r.Context()); err != nil {
		h.writeServiceError(r.Context(), w, "merge queue pages", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Status(r.Context())
	if err != nil {
		h.writeServiceError(r.Context(), w, "get status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(view))
}

func (h *Handler) handleForceRecognize(w http.ResponseWriter, r *http.Request) {
	var req forceRecognizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Keys) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "keys are required"))
		return
	}
	keys := make([]models.MemberKey, len(req.Keys))
	for i, raw := range req.Keys {
		key, err := models.ParseMemberKey(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid member key"))
			return
		}
		keys[i] = key
	}
	ids, err := h.svc.ForceRecognizePersonhood(r.Context(), keys)
	if err != nil {
		h.writeServiceError(r.Context(), w, "force recognize", err)
		return
	}
	resp := forceRecognizedResponse{IDs: make([]uint64, len(ids))}
	for i, id := range ids {
		resp.IDs[i] = uint64(id)
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleSetOnboardingSize(w http.ResponseWriter, r *http.Request) {
	var req onboardingSizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.svc.SetOnboardingSize(r.Context(), req.Size); err != nil {
		h.writeServiceError(r.Context(), w, "set onboarding size", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReserveID(w http.ResponseWriter, r *http.Request) {
	id, err := h.svc.ReserveNewID(r.Context())
	if err != nil {
		h.writeServiceError(r.Context(), w, "reserve id", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, reservationResponse{ID: uint64(id)})
}

func (h *Handler) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.personalID(w, r)
	if !ok {
		return
	}
	if err := h.svc.CancelIDReservation(r.Context(), id); err != nil {
		h.writeServiceError(r.Context(), w, "cancel reservation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRenewReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.personalID(w, r)
	if !ok {
		return
	}
	if err := h.svc.RenewIDReservation(r.Context(), id); err != nil {
		h.writeServiceError(r.Context(), w, "renew reservation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) personalID(w http.ResponseWriter, r *http.Request) (models.PersonalID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid personal id"))
		return 0, false
	}
	return models.PersonalID(id), true
}

func (h *Handler) ringIndex(w http.ResponseWriter, r *http.Request) (models.RingIndex, bool) {
	raw := chi.URLParam(r, "ring")
	ring, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid ring index"))
		return 0, false
	}
	return models.RingIndex(ring), true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	coded := toDomainError(err)
	if dErrors.Is(coded, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, "operation failed",
			"operation", op,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, "request rejected",
			"operation", op,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, coded)
}
