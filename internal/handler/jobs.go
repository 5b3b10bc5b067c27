package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/glosspos/api/internal/database"
	"github.com/glosspos/api/internal/job"
	"github.com/glosspos/api/internal/middleware"
	"github.com/glosspos/api/internal/service"
	"github.com/glosspos/api/internal/ws"
)

// JobServicer defines the service methods needed by job handlers.
// Satisfied by *service.JobService; narrow interface for testability.
type JobServicer interface {
	Create(ctx context.Context, req service.CreateJobRequest) (*service.JobDetail, error)
	Get(ctx context.Context, shopID, id uuid.UUID) (*service.JobDetail, error)
	List(ctx context.Context, arg database.ListJobsParams) ([]service.JobSummary, error)
	StartIntake(ctx context.Context, shopID, id uuid.UUID) (database.Job, error)
	CapturePhoto(ctx context.Context, req service.CapturePhotoRequest) (*service.CapturePhotoResult, error)
	Coverage(ctx context.Context, shopID, id uuid.UUID, phase string) (job.Coverage, error)
	StartWork(ctx context.Context, shopID, id uuid.UUID, estimatedPickup string) (database.Job, error)
	PauseTimer(ctx context.Context, shopID, id uuid.UUID) (database.Job, error)
	ResumeTimer(ctx context.Context, shopID, id uuid.UUID) (database.Job, error)
	CompleteWork(ctx context.Context, shopID, id uuid.UUID) (database.Job, error)
	RecordPickup(ctx context.Context, shopID, id uuid.UUID) (database.Job, error)
	Close(ctx context.Context, shopID, id uuid.UUID, orderID string) (database.Job, error)
	Cancel(ctx context.Context, req service.CancelJobRequest) (database.Job, error)
	UpdatePickupEstimate(ctx context.Context, shopID, id uuid.UUID, at string) (database.Job, error)

	ProposeAddon(ctx context.Context, req service.ProposeAddonRequest) (database.JobAddon, error)
	RespondAddon(ctx context.Context, shopID, jobID, addonID uuid.UUID, approved bool) (database.JobAddon, error)
	ResendAddon(ctx context.Context, shopID, jobID, addonID uuid.UUID, channel string) (database.JobAddon, error)
}

// JobHandler handles job lifecycle, photo, timer and add-on endpoints.
type JobHandler struct {
	svc JobServicer
	hub Broadcaster
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(svc JobServicer, hub Broadcaster) *JobHandler {
	return &JobHandler{svc: svc, hub: hub}
}

// RegisterRoutes registers job endpoints on the given Chi router.
// Expected to be mounted inside a shop-scoped subrouter: /shops/{sid}/jobs
func (h *JobHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/intake/start", h.StartIntake)
		r.Post("/photos", h.CapturePhoto)
		r.Get("/coverage", h.Coverage)
		r.Post("/start", h.StartWork)
		r.Post("/timer/pause", h.PauseTimer)
		r.Post("/timer/resume", h.ResumeTimer)
		r.Post("/complete", h.CompleteWork)
		r.Post("/pickup", h.RecordPickup)
		r.Put("/pickup-estimate", h.UpdatePickupEstimate)
		r.Post("/close", h.Close)
		r.Post("/cancel", h.Cancel)

		r.Post("/addons", h.ProposeAddon)
		r.Post("/addons/{aid}/respond", h.RespondAddon)
		r.Post("/addons/{aid}/resend", h.ResendAddon)
	})
}

// --- Request / Response types ---

type createJobRequest struct {
	Origin      string                  `json:"origin"`
	CustomerID  string                  `json:"customer_id"`
	VehicleID   string                  `json:"vehicle_id"`
	Notes       string                  `json:"notes"`
	ScheduledAt string                  `json:"scheduled_at"`
	Services    []jobServiceSelectionIn `json:"services"`
}

type jobServiceSelectionIn struct {
	ServiceID string `json:"service_id"`
	TierName  string `json:"tier_name"`
}

type capturePhotoRequest struct {
	Zone        string `json:"zone"`
	Phase       string `json:"phase"`
	ImageRef    string `json:"image_ref"`
	Annotations string `json:"annotations"`
	IsInternal  bool   `json:"is_internal"`
}

type startWorkRequest struct {
	EstimatedPickupAt string `json:"estimated_pickup_at"`
}

type closeJobRequest struct {
	OrderID string `json:"order_id"`
}

type cancelJobRequest struct {
	Reason        string `json:"reason"`
	NotifyChannel string `json:"notify_channel"`
}

type pickupEstimateRequest struct {
	EstimatedPickupAt string `json:"estimated_pickup_at"`
}

type proposeAddonRequest struct {
	ServiceID         string `json:"service_id"`
	TierName          string `json:"tier_name"`
	ProductID         string `json:"product_id"`
	CustomDescription string `json:"custom_description"`
	CustomPrice       string `json:"custom_price"`

	Discount           string `json:"discount"`
	PhotoID            string `json:"photo_id"`
	PickupDelayMinutes int32  `json:"pickup_delay_minutes"`
	Message            string `json:"message"`

	NotifyChannel string `json:"notify_channel"`
}

type respondAddonRequest struct {
	Approved bool `json:"approved"`
}

type resendAddonRequest struct {
	NotifyChannel string `json:"notify_channel"`
}

type jobResponse struct {
	ID         uuid.UUID `json:"id"`
	ShopID     uuid.UUID `json:"shop_id"`
	Origin     string    `json:"origin"`
	Status     string    `json:"status"`
	CustomerID *string   `json:"customer_id"`
	VehicleID  *string   `json:"vehicle_id"`
	Notes      *string   `json:"notes"`

	ScheduledAt       *time.Time `json:"scheduled_at"`
	IntakeStartedAt   *time.Time `json:"intake_started_at"`
	IntakeCompletedAt *time.Time `json:"intake_completed_at"`
	WorkCompletedAt   *time.Time `json:"work_completed_at"`
	EstimatedPickupAt *time.Time `json:"estimated_pickup_at"`
	ActualPickupAt    *time.Time `json:"actual_pickup_at"`
	ClosedAt          *time.Time `json:"closed_at"`
	CancelledAt       *time.Time `json:"cancelled_at"`
	CancelReason      *string    `json:"cancel_reason"`

	OrderID *string `json:"order_id"`

	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type jobDetailResponse struct {
	jobResponse

	EffectiveStatus string `json:"effective_status"`
	ElapsedSeconds  int64  `json:"elapsed_seconds"`
	TimerRunning    bool   `json:"timer_running"`

	Services []jobServiceResponse `json:"services"`
	Addons   []addonResponse      `json:"addons"`
	Photos   []photoResponse      `json:"photos"`
}

type jobSummaryResponse struct {
	jobResponse

	EffectiveStatus string `json:"effective_status"`
	ElapsedSeconds  int64  `json:"elapsed_seconds"`
}

type jobServiceResponse struct {
	ID        uuid.UUID `json:"id"`
	ServiceID uuid.UUID `json:"service_id"`
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	TierName  *string   `json:"tier_name"`
}

type photoResponse struct {
	ID          uuid.UUID `json:"id"`
	JobID       uuid.UUID `json:"job_id"`
	Zone        string    `json:"zone"`
	Phase       string    `json:"phase"`
	ImageRef    string    `json:"image_ref"`
	Annotations *string   `json:"annotations"`
	IsInternal  bool      `json:"is_internal"`
	TakenBy     uuid.UUID `json:"taken_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type addonResponse struct {
	ID     uuid.UUID `json:"id"`
	JobID  uuid.UUID `json:"job_id"`
	Status string    `json:"status"`

	ServiceID         *string `json:"service_id"`
	ProductID         *string `json:"product_id"`
	CustomDescription *string `json:"custom_description"`
	Name              string  `json:"name"`

	Price          string  `json:"price"`
	DiscountAmount *string `json:"discount_amount"`

	PhotoID            *string `json:"photo_id"`
	PickupDelayMinutes int32   `json:"pickup_delay_minutes"`
	Message            *string `json:"message"`

	SentAt      time.Time  `json:"sent_at"`
	RespondedAt *time.Time `json:"responded_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
}

type regionCoverageResponse struct {
	Covered  int  `json:"covered"`
	Required int  `json:"required"`
	Met      bool `json:"met"`
}

type coverageResponse struct {
	Exterior  regionCoverageResponse `json:"exterior"`
	Interior  regionCoverageResponse `json:"interior"`
	Met       bool                   `json:"met"`
	Shortfall string                 `json:"shortfall,omitempty"`
}

type capturePhotoResponse struct {
	Photo           photoResponse    `json:"photo"`
	Coverage        coverageResponse `json:"coverage"`
	IntakeCompleted bool             `json:"intake_completed"`
}

func dbJobToResponse(j database.Job) jobResponse {
	resp := jobResponse{
		ID:        j.ID,
		ShopID:    j.ShopID,
		Origin:    j.Origin,
		Status:    j.Status,
		CreatedBy: j.CreatedBy,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if j.CustomerID.Valid {
		s := uuid.UUID(j.CustomerID.Bytes).String()
		resp.CustomerID = &s
	}
	if j.VehicleID.Valid {
		s := uuid.UUID(j.VehicleID.Bytes).String()
		resp.VehicleID = &s
	}
	if j.Notes.Valid {
		resp.Notes = &j.Notes.String
	}
	if j.ScheduledAt.Valid {
		resp.ScheduledAt = &j.ScheduledAt.Time
	}
	if j.IntakeStartedAt.Valid {
		resp.IntakeStartedAt = &j.IntakeStartedAt.Time
	}
	if j.IntakeCompletedAt.Valid {
		resp.IntakeCompletedAt = &j.IntakeCompletedAt.Time
	}
	if j.WorkCompletedAt.Valid {
		resp.WorkCompletedAt = &j.WorkCompletedAt.Time
	}
	if j.EstimatedPickupAt.Valid {
		resp.EstimatedPickupAt = &j.EstimatedPickupAt.Time
	}
	if j.ActualPickupAt.Valid {
		resp.ActualPickupAt = &j.ActualPickupAt.Time
	}
	if j.ClosedAt.Valid {
		resp.ClosedAt = &j.ClosedAt.Time
	}
	if j.CancelledAt.Valid {
		resp.CancelledAt = &j.CancelledAt.Time
	}
	if j.CancelReason.Valid {
		resp.CancelReason = &j.CancelReason.String
	}
	if j.OrderID.Valid {
		s := uuid.UUID(j.OrderID.Bytes).String()
		resp.OrderID = &s
	}
	return resp
}

func jobDetailToResponse(d *service.JobDetail) jobDetailResponse {
	resp := jobDetailResponse{
		jobResponse:     dbJobToResponse(d.Job),
		EffectiveStatus: d.EffectiveStatus,
		ElapsedSeconds:  d.ElapsedSeconds,
		TimerRunning:    d.TimerRunning,
		Services:        make([]jobServiceResponse, len(d.Services)),
		Addons:          make([]addonResponse, len(d.Addons)),
		Photos:          make([]photoResponse, len(d.Photos)),
	}
	for i, s := range d.Services {
		resp.Services[i] = dbJobServiceToResponse(s)
	}
	for i, a := range d.Addons {
		resp.Addons[i] = dbAddonToResponse(a)
	}
	for i, p := range d.Photos {
		resp.Photos[i] = dbPhotoToResponse(p)
	}
	return resp
}

func dbJobServiceToResponse(s database.JobService) jobServiceResponse {
	resp := jobServiceResponse{
		ID:        s.ID,
		ServiceID: s.ServiceID,
		Name:      s.Name,
		Price:     numericToString(s.Price),
	}
	if s.TierName.Valid {
		resp.TierName = &s.TierName.String
	}
	return resp
}

func dbPhotoToResponse(p database.JobPhoto) photoResponse {
	resp := photoResponse{
		ID:         p.ID,
		JobID:      p.JobID,
		Zone:       p.Zone,
		Phase:      p.Phase,
		ImageRef:   p.ImageRef,
		IsInternal: p.IsInternal,
		TakenBy:    p.TakenBy,
		CreatedAt:  p.CreatedAt,
	}
	if p.Annotations.Valid {
		resp.Annotations = &p.Annotations.String
	}
	return resp
}

func dbAddonToResponse(a database.JobAddon) addonResponse {
	resp := addonResponse{
		ID:                 a.ID,
		JobID:              a.JobID,
		Status:             a.Status,
		Name:               a.Name,
		Price:              numericToString(a.Price),
		PickupDelayMinutes: a.PickupDelayMinutes,
		SentAt:             a.SentAt,
		ExpiresAt:          a.ExpiresAt,
	}
	if a.ServiceID.Valid {
		s := uuid.UUID(a.ServiceID.Bytes).String()
		resp.ServiceID = &s
	}
	if a.ProductID.Valid {
		s := uuid.UUID(a.ProductID.Bytes).String()
		resp.ProductID = &s
	}
	if a.CustomDescription.Valid {
		resp.CustomDescription = &a.CustomDescription.String
	}
	if a.DiscountAmount.Valid {
		s := numericToString(a.DiscountAmount)
		resp.DiscountAmount = &s
	}
	if a.PhotoID.Valid {
		s := uuid.UUID(a.PhotoID.Bytes).String()
		resp.PhotoID = &s
	}
	if a.Message.Valid {
		resp.Message = &a.Message.String
	}
	if a.RespondedAt.Valid {
		resp.RespondedAt = &a.RespondedAt.Time
	}
	return resp
}

func toCoverageResponse(c job.Coverage) coverageResponse {
	resp := coverageResponse{
		Exterior: regionCoverageResponse{
			Covered:  c.Exterior.Covered,
			Required: c.Exterior.Required,
			Met:      c.Exterior.Met(),
		},
		Interior: regionCoverageResponse{
			Covered:  c.Interior.Covered,
			Required: c.Interior.Required,
			Met:      c.Interior.Met(),
		},
		Met: c.Met(),
	}
	if !c.Met() {
		resp.Shortfall = c.Shortfall()
	}
	return resp
}

// --- Handlers ---

// Create handles POST /shops/{sid}/jobs.
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	services := make([]service.JobServiceRequest, len(req.Services))
	for i, s := range req.Services {
		services[i] = service.JobServiceRequest{
			ServiceID: s.ServiceID,
			TierName:  s.TierName,
		}
	}

	detail, err := h.svc.Create(r.Context(), service.CreateJobRequest{
		ShopID:      shopID,
		CreatedBy:   claims.UserID,
		Origin:      req.Origin,
		CustomerID:  req.CustomerID,
		VehicleID:   req.VehicleID,
		Notes:       req.Notes,
		ScheduledAt: req.ScheduledAt,
		Services:    services,
	})
	if err != nil {
		h.writeJobError(w, err, "create job")
		return
	}

	h.broadcastJob(shopID, detail.Job, detail.EffectiveStatus)
	writeJSON(w, http.StatusCreated, jobDetailToResponse(detail))
}

// List handles GET /shops/{sid}/jobs.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	limit, offset := parsePagination(r)

	summaries, err := h.svc.List(r.Context(), database.ListJobsParams{
		ShopID: shopID,
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		log.Printf("ERROR: list jobs: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]jobSummaryResponse, len(summaries))
	for i, s := range summaries {
		resp[i] = jobSummaryResponse{
			jobResponse:     dbJobToResponse(s.Job),
			EffectiveStatus: s.EffectiveStatus,
			ElapsedSeconds:  s.ElapsedSeconds,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /shops/{sid}/jobs/{id}.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	shopID, jobID, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	detail, err := h.svc.Get(r.Context(), shopID, jobID)
	if err != nil {
		h.writeJobError(w, err, "get job")
		return
	}

	writeJSON(w, http.StatusOK, jobDetailToResponse(detail))
}

// StartIntake handles POST /shops/{sid}/jobs/{id}/intake/start.
func (h *JobHandler) StartIntake(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "start intake", h.svc.StartIntake)
}

// CapturePhoto handles POST /shops/{sid}/jobs/{id}/photos.
func (h *JobHandler) CapturePhoto(w http.ResponseWriter, r *http.Request) {
	shopID, jobID, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req capturePhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.ImageRef == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "image_ref is required"})
		return
	}

	result, err := h.svc.CapturePhoto(r.Context(), service.CapturePhotoRequest{
		ShopID:      shopID,
		JobID:       jobID,
		Zone:        req.Zone,
		Phase:       req.Phase,
		ImageRef:    req.ImageRef,
		Annotations: req.Annotations,
		IsInternal:  req.IsInternal,
		TakenBy:     claims.UserID,
	})
	if err != nil {
		h.writeJobError(w, err, "capture photo")
		return
	}

	if result.IntakeCompleted {
		h.broadcastJob(shopID, result.Job, result.Job.Status)
	}

	writeJSON(w, http.StatusCreated, capturePhotoResponse{
		Photo:           dbPhotoToResponse(result.Photo),
		Coverage:        toCoverageResponse(result.Coverage),
		IntakeCompleted: result.IntakeCompleted,
	})
}

// Coverage handles GET /shops/{sid}/jobs/{id}/coverage?phase=INTAKE.
func (h *JobHandler) Coverage(w http.ResponseWriter, r *http.Request) {
	shopID, jobID, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	coverage, err := h.svc.Coverage(r.Context(), shopID, jobID, r.URL.Query().Get("phase"))
	if err != nil {
		h.writeJobError(w, err, "job coverage")
		return
	}

	writeJSON(w, http.StatusOK, toCoverageResponse(coverage))
}

// StartWork handles POST /shops/{sid}/jobs/{id}/start.
func (h *JobHandler) StartWork(w http.ResponseWriter, r *http.Request) {
	shopID, jobID, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	var req startWorkRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	updated, err := h.svc.StartWork(r.Context(), shopID, jobID, req.EstimatedPickupAt)
	if err != nil {
		h.writeJobError(w, err, "start work")
		return
	}

	h.broadcastJob(shopID, updated, updated.Status)
	writeJSON(w, http.StatusOK, dbJobToResponse(updated))
}

// PauseTimer handles POST /shops/{sid}/jobs/{id}/timer/pause.
func (h *JobHandler) PauseTimer(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "pause timer", h.svc.PauseTimer)
}

// ResumeTimer handles POST /shops/{sid}/jobs/{id}/timer/resume.
func (h *JobHandler) ResumeTimer(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "resume timer", h.svc.ResumeTimer)
}

// CompleteWork handles POST /shops/{sid}/jobs/{id}/complete.
func (h *JobHandler) CompleteWork(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "complete work", h.svc.CompleteWork)
}

// RecordPickup handles POST /shops/{sid}/jobs/{id}/pickup.
func (h *JobHandler) RecordPickup(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "record pickup", h.svc.RecordPickup)
}

// UpdatePickupEstimate handles PUT /shops/{sid}/jobs/{id}/pickup-estimate.
func (h *JobHandler) UpdatePickupEstimate(w http.ResponseWriter, r *http.Request) {
	shopID, jobID, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	var req pickupEstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	updated, err := h.svc.UpdatePickupEstimate(r.Context(), shopID, jobID, req.EstimatedPickupAt)
	if err != nil {
		h.writeJobError(w, err, "update pickup estimate")
		return
	}

	h.broadcastJob(shopID, updated, updated.Status)
	writeJSON(w, http.StatusOK, dbJobToResponse(updated))
}

// Close handles POST /shops/{sid}/jobs/{id}/close.
func (h *JobHandler) Close(w http.ResponseWriter, r *http.Request) {
	shopID, jobID, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	var req closeJobRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	updated, err := h.svc.Close(r.Context(), shopID, jobID, req.OrderID)
	if err != nil {
		h.writeJobError(w, err, "close job")
		return
	}

	h.broadcastJob(shopID, updated, updated.Status)
	writeJSON(w, http.StatusOK, dbJobToResponse(updated))
}

// Cancel handles POST /shops/{sid}/jobs/{id}/cancel.
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	shopID, jobID, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req cancelJobRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	updated, err := h.svc.Cancel(r.Context(), service.CancelJobRequest{
		ShopID:        shopID,
		JobID:         jobID,
		Role:          claims.Role,
		Reason:        req.Reason,
		NotifyChannel: req.NotifyChannel,
	})
	if err != nil {
		h.writeJobError(w, err, "cancel job")
		return
	}

	h.broadcastJob(shopID, updated, updated.Status)
	writeJSON(w, http.StatusOK, dbJobToResponse(updated))
}

// ProposeAddon handles POST /shops/{sid}/jobs/{id}/addons.
func (h *JobHandler) ProposeAddon(w http.ResponseWriter, r *http.Request) {
	shopID, jobID, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req proposeAddonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	addon, err := h.svc.ProposeAddon(r.Context(), service.ProposeAddonRequest{
		ShopID:             shopID,
		JobID:              jobID,
		CreatedBy:          claims.UserID,
		ServiceID:          req.ServiceID,
		TierName:           req.TierName,
		ProductID:          req.ProductID,
		CustomDescription:  req.CustomDescription,
		CustomPrice:        req.CustomPrice,
		Discount:           req.Discount,
		PhotoID:            req.PhotoID,
		PickupDelayMinutes: req.PickupDelayMinutes,
		Message:            req.Message,
		NotifyChannel:      req.NotifyChannel,
	})
	if err != nil {
		h.writeJobError(w, err, "propose addon")
		return
	}

	h.broadcastAddon(shopID, addon)
	writeJSON(w, http.StatusCreated, dbAddonToResponse(addon))
}

// RespondAddon handles POST /shops/{sid}/jobs/{id}/addons/{aid}/respond.
func (h *JobHandler) RespondAddon(w http.ResponseWriter, r *http.Request) {
	shopID, jobID, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	addonID, err := uuid.Parse(chi.URLParam(r, "aid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid addon ID"})
		return
	}

	var req respondAddonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	addon, err := h.svc.RespondAddon(r.Context(), shopID, jobID, addonID, req.Approved)
	if err != nil {
		h.writeJobError(w, err, "respond addon")
		return
	}

	h.broadcastAddon(shopID, addon)
	writeJSON(w, http.StatusOK, dbAddonToResponse(addon))
}

// ResendAddon handles POST /shops/{sid}/jobs/{id}/addons/{aid}/resend.
func (h *JobHandler) ResendAddon(w http.ResponseWriter, r *http.Request) {
	shopID, jobID, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	addonID, err := uuid.Parse(chi.URLParam(r, "aid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid addon ID"})
		return
	}

	var req resendAddonRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	addon, err := h.svc.ResendAddon(r.Context(), shopID, jobID, addonID, req.NotifyChannel)
	if err != nil {
		h.writeJobError(w, err, "resend addon")
		return
	}

	h.broadcastAddon(shopID, addon)
	writeJSON(w, http.StatusOK, dbAddonToResponse(addon))
}

// --- Helpers ---

// transition runs a body-less lifecycle action and writes the updated job.
func (h *JobHandler) transition(w http.ResponseWriter, r *http.Request, op string,
	fn func(ctx context.Context, shopID, id uuid.UUID) (database.Job, error)) {
	shopID, jobID, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	updated, err := fn(r.Context(), shopID, jobID)
	if err != nil {
		h.writeJobError(w, err, op)
		return
	}

	h.broadcastJob(shopID, updated, updated.Status)
	writeJSON(w, http.StatusOK, dbJobToResponse(updated))
}

func (h *JobHandler) parseIDs(w http.ResponseWriter, r *http.Request) (shopID, jobID uuid.UUID, ok bool) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return uuid.Nil, uuid.Nil, false
	}
	jobID, err = uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid job ID"})
		return uuid.Nil, uuid.Nil, false
	}
	return shopID, jobID, true
}

func (h *JobHandler) writeJobError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
	case errors.Is(err, service.ErrAddonNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "add-on not found"})
	case errors.Is(err, service.ErrJobStatus),
		errors.Is(err, service.ErrIntakeIncomplete),
		errors.Is(err, service.ErrCoverageShortfall),
		errors.Is(err, service.ErrAddonResponded),
		errors.Is(err, service.ErrAddonExpired),
		errors.Is(err, job.ErrDuplicateService),
		errors.Is(err, job.ErrAddonNotResendable):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrCancelNotAllowed):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidOrigin),
		errors.Is(err, service.ErrNoServices),
		errors.Is(err, service.ErrNotifyChannelRequired),
		errors.Is(err, service.ErrUnknownZone),
		errors.Is(err, service.ErrInvalidPhase),
		errors.Is(err, service.ErrInvalidScheduleTime),
		errors.Is(err, service.ErrInvalidPickupTime),
		errors.Is(err, service.ErrInvalidOrderID),
		errors.Is(err, service.ErrAddonItem),
		errors.Is(err, service.ErrInvalidPhotoID),
		errors.Is(err, service.ErrInvalidChannel),
		errors.Is(err, service.ErrCustomerUnreachable),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, job.ErrAddonDiscount),
		errors.Is(err, job.ErrTimerRunning),
		errors.Is(err, job.ErrTimerNotRunning),
		isOrderValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func (h *JobHandler) broadcastJob(shopID uuid.UUID, j database.Job, effectiveStatus string) {
	if h.hub == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"job_id":           j.ID.String(),
		"status":           j.Status,
		"effective_status": effectiveStatus,
	})
	if err != nil {
		return
	}
	h.hub.BroadcastToShop(shopID, ws.Event{Type: ws.EventJobUpdated, Payload: payload})
}

func (h *JobHandler) broadcastAddon(shopID uuid.UUID, a database.JobAddon) {
	if h.hub == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"addon_id": a.ID.String(),
		"job_id":   a.JobID.String(),
		"status":   a.Status,
		"name":     a.Name,
	})
	if err != nil {
		return
	}
	h.hub.BroadcastToShop(shopID, ws.Event{Type: ws.EventAddonUpdated, Payload: payload})
}
