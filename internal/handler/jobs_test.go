package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/glosspos/api/internal/database"
	"github.com/glosspos/api/internal/handler"
	"github.com/glosspos/api/internal/job"
	"github.com/glosspos/api/internal/middleware"
	"github.com/glosspos/api/internal/service"
	"github.com/glosspos/api/internal/ws"
)

// --- Mock JobServicer ---

type mockJobService struct {
	createFn       func(ctx context.Context, req service.CreateJobRequest) (*service.JobDetail, error)
	getFn          func(ctx context.Context, shopID, id uuid.UUID) (*service.JobDetail, error)
	listFn         func(ctx context.Context, arg database.ListJobsParams) ([]service.JobSummary, error)
	startIntakeFn  func(ctx context.Context, shopID, id uuid.UUID) (database.Job, error)
	capturePhotoFn func(ctx context.Context, req service.CapturePhotoRequest) (*service.CapturePhotoResult, error)
	coverageFn     func(ctx context.Context, shopID, id uuid.UUID, phase string) (job.Coverage, error)
	startWorkFn    func(ctx context.Context, shopID, id uuid.UUID, estimatedPickup string) (database.Job, error)
	pauseTimerFn   func(ctx context.Context, shopID, id uuid.UUID) (database.Job, error)
	resumeTimerFn  func(ctx context.Context, shopID, id uuid.UUID) (database.Job, error)
	completeWorkFn func(ctx context.Context, shopID, id uuid.UUID) (database.Job, error)
	recordPickupFn func(ctx context.Context, shopID, id uuid.UUID) (database.Job, error)
	closeFn        func(ctx context.Context, shopID, id uuid.UUID, orderID string) (database.Job, error)
	cancelFn       func(ctx context.Context, req service.CancelJobRequest) (database.Job, error)
	updatePickupFn func(ctx context.Context, shopID, id uuid.UUID, at string) (database.Job, error)
	proposeAddonFn func(ctx context.Context, req service.ProposeAddonRequest) (database.JobAddon, error)
	respondAddonFn func(ctx context.Context, shopID, jobID, addonID uuid.UUID, approved bool) (database.JobAddon, error)
	resendAddonFn  func(ctx context.Context, shopID, jobID, addonID uuid.UUID, channel string) (database.JobAddon, error)
}

func (m *mockJobService) Create(ctx context.Context, req service.CreateJobRequest) (*service.JobDetail, error) {
	return m.createFn(ctx, req)
}

func (m *mockJobService) Get(ctx context.Context, shopID, id uuid.UUID) (*service.JobDetail, error) {
	return m.getFn(ctx, shopID, id)
}

func (m *mockJobService) List(ctx context.Context, arg database.ListJobsParams) ([]service.JobSummary, error) {
	if m.listFn != nil {
		return m.listFn(ctx, arg)
	}
	return []service.JobSummary{}, nil
}

func (m *mockJobService) StartIntake(ctx context.Context, shopID, id uuid.UUID) (database.Job, error) {
	if m.startIntakeFn != nil {
		return m.startIntakeFn(ctx, shopID, id)
	}
	return database.Job{}, pgx.ErrNoRows
}

func (m *mockJobService) CapturePhoto(ctx context.Context, req service.CapturePhotoRequest) (*service.CapturePhotoResult, error) {
	return m.capturePhotoFn(ctx, req)
}

func (m *mockJobService) Coverage(ctx context.Context, shopID, id uuid.UUID, phase string) (job.Coverage, error) {
	return m.coverageFn(ctx, shopID, id, phase)
}

func (m *mockJobService) StartWork(ctx context.Context, shopID, id uuid.UUID, estimatedPickup string) (database.Job, error) {
	return m.startWorkFn(ctx, shopID, id, estimatedPickup)
}

func (m *mockJobService) PauseTimer(ctx context.Context, shopID, id uuid.UUID) (database.Job, error) {
	return m.pauseTimerFn(ctx, shopID, id)
}

func (m *mockJobService) ResumeTimer(ctx context.Context, shopID, id uuid.UUID) (database.Job, error) {
	return m.resumeTimerFn(ctx, shopID, id)
}

func (m *mockJobService) CompleteWork(ctx context.Context, shopID, id uuid.UUID) (database.Job, error) {
	return m.completeWorkFn(ctx, shopID, id)
}

func (m *mockJobService) RecordPickup(ctx context.Context, shopID, id uuid.UUID) (database.Job, error) {
	return m.recordPickupFn(ctx, shopID, id)
}

func (m *mockJobService) Close(ctx context.Context, shopID, id uuid.UUID, orderID string) (database.Job, error) {
	return m.closeFn(ctx, shopID, id, orderID)
}

func (m *mockJobService) Cancel(ctx context.Context, req service.CancelJobRequest) (database.Job, error) {
	return m.cancelFn(ctx, req)
}

func (m *mockJobService) UpdatePickupEstimate(ctx context.Context, shopID, id uuid.UUID, at string) (database.Job, error) {
	return m.updatePickupFn(ctx, shopID, id, at)
}

func (m *mockJobService) ProposeAddon(ctx context.Context, req service.ProposeAddonRequest) (database.JobAddon, error) {
	return m.proposeAddonFn(ctx, req)
}

func (m *mockJobService) RespondAddon(ctx context.Context, shopID, jobID, addonID uuid.UUID, approved bool) (database.JobAddon, error) {
	return m.respondAddonFn(ctx, shopID, jobID, addonID, approved)
}

func (m *mockJobService) ResendAddon(ctx context.Context, shopID, jobID, addonID uuid.UUID, channel string) (database.JobAddon, error) {
	return m.resendAddonFn(ctx, shopID, jobID, addonID, channel)
}

func setupJobRouter(svc *mockJobService, hub *mockHub) *chi.Mux {
	var b handler.Broadcaster
	if hub != nil {
		b = hub
	}
	h := handler.NewJobHandler(svc, b)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/shops/{sid}/jobs", h.RegisterRoutes)
	return r
}

func testDBJob(shopID uuid.UUID, status string) database.Job {
	now := time.Now()
	return database.Job{
		ID:        uuid.New(),
		ShopID:    shopID,
		Origin:    "WALK_IN",
		Status:    status,
		CreatedBy: uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testDBAddon(jobID uuid.UUID, status string) database.JobAddon {
	now := time.Now()
	return database.JobAddon{
		ID:        uuid.New(),
		JobID:     jobID,
		Status:    status,
		Name:      "Headlight Restoration",
		Price:     testNumeric("45.00"),
		SentAt:    now,
		ExpiresAt: now.Add(24 * time.Hour),
		CreatedBy: uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// --- Booking ---

func TestJobCreate_HappyPath(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)
	dbJob := testDBJob(shopID, "SCHEDULED")
	serviceID := uuid.New()

	svc := &mockJobService{
		createFn: func(ctx context.Context, req service.CreateJobRequest) (*service.JobDetail, error) {
			if req.ShopID != shopID {
				t.Errorf("shop_id: got %v, want %v", req.ShopID, shopID)
			}
			if req.CreatedBy != claims.UserID {
				t.Errorf("created_by: got %v, want %v", req.CreatedBy, claims.UserID)
			}
			if len(req.Services) != 1 || req.Services[0].TierName != "DELUXE" {
				t.Errorf("services: got %+v, want one DELUXE selection", req.Services)
			}
			return &service.JobDetail{
				Job:             dbJob,
				EffectiveStatus: "SCHEDULED",
				Services: []database.JobService{{
					ID: uuid.New(), JobID: dbJob.ID, ServiceID: serviceID,
					Name: "Full Detail", Price: testNumeric("140.00"),
					TierName: pgtype.Text{String: "DELUXE", Valid: true},
				}},
			}, nil
		},
	}
	hub := &mockHub{}
	router := setupJobRouter(svc, hub)

	rr := doAuthRequest(t, router, "POST", "/shops/"+shopID.String()+"/jobs", map[string]interface{}{
		"origin": "WALK_IN",
		"services": []map[string]interface{}{
			{"service_id": serviceID.String(), "tier_name": "DELUXE"},
		},
	}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeJSON(t, rr)
	if resp["effective_status"] != "SCHEDULED" {
		t.Errorf("effective_status: got %v, want SCHEDULED", resp["effective_status"])
	}
	services, ok := resp["services"].([]interface{})
	if !ok || len(services) != 1 {
		t.Fatalf("services: got %v, want 1 entry", resp["services"])
	}
	first := services[0].(map[string]interface{})
	if first["price"] != "140.00" {
		t.Errorf("service price: got %v, want 140.00", first["price"])
	}
	if len(hub.events) != 1 || hub.events[0].Type != ws.EventJobUpdated {
		t.Errorf("broadcast: got %v, want one %s event", hub.events, ws.EventJobUpdated)
	}
}

func TestJobCreate_InvalidOrigin(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)

	svc := &mockJobService{
		createFn: func(ctx context.Context, req service.CreateJobRequest) (*service.JobDetail, error) {
			return nil, service.ErrInvalidOrigin
		},
	}
	router := setupJobRouter(svc, nil)

	rr := doAuthRequest(t, router, "POST", "/shops/"+shopID.String()+"/jobs", map[string]interface{}{
		"origin": "DRIVE_BY",
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestJobList_ForwardsStatusFilter(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)

	svc := &mockJobService{
		listFn: func(ctx context.Context, arg database.ListJobsParams) ([]service.JobSummary, error) {
			if arg.Status != "IN_PROGRESS" {
				t.Errorf("status filter: got %v, want IN_PROGRESS", arg.Status)
			}
			if arg.Limit != 10 || arg.Offset != 5 {
				t.Errorf("pagination: got limit=%d offset=%d, want 10/5", arg.Limit, arg.Offset)
			}
			return []service.JobSummary{{
				Job:             testDBJob(shopID, "IN_PROGRESS"),
				EffectiveStatus: "PENDING_APPROVAL",
				ElapsedSeconds:  150,
			}}, nil
		},
	}
	router := setupJobRouter(svc, nil)

	rr := doAuthRequest(t, router, "GET",
		"/shops/"+shopID.String()+"/jobs?status=IN_PROGRESS&limit=10&offset=5", nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	list := decodeJSONList(t, rr)
	if len(list) != 1 {
		t.Fatalf("jobs: got %d, want 1", len(list))
	}
	first := list[0].(map[string]interface{})
	if first["effective_status"] != "PENDING_APPROVAL" {
		t.Errorf("effective_status: got %v, want PENDING_APPROVAL", first["effective_status"])
	}
	if first["elapsed_seconds"] != float64(150) {
		t.Errorf("elapsed_seconds: got %v, want 150", first["elapsed_seconds"])
	}
}

func TestJobGet_NotFound(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)

	svc := &mockJobService{
		getFn: func(ctx context.Context, sid, id uuid.UUID) (*service.JobDetail, error) {
			return nil, service.ErrJobNotFound
		},
	}
	router := setupJobRouter(svc, nil)

	rr := doAuthRequest(t, router, "GET", "/shops/"+shopID.String()+"/jobs/"+uuid.New().String(), nil, claims)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}

func TestJobGet_IncludesAddonsAndTimer(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)
	dbJob := testDBJob(shopID, "IN_PROGRESS")
	addon := testDBAddon(dbJob.ID, "PENDING")

	svc := &mockJobService{
		getFn: func(ctx context.Context, sid, id uuid.UUID) (*service.JobDetail, error) {
			return &service.JobDetail{
				Job:             dbJob,
				Addons:          []database.JobAddon{addon},
				EffectiveStatus: "PENDING_APPROVAL",
				ElapsedSeconds:  320,
				TimerRunning:    true,
			}, nil
		},
	}
	router := setupJobRouter(svc, nil)

	rr := doAuthRequest(t, router, "GET", "/shops/"+shopID.String()+"/jobs/"+dbJob.ID.String(), nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeJSON(t, rr)
	if resp["effective_status"] != "PENDING_APPROVAL" {
		t.Errorf("effective_status: got %v, want PENDING_APPROVAL", resp["effective_status"])
	}
	if resp["timer_running"] != true {
		t.Errorf("timer_running: got %v, want true", resp["timer_running"])
	}
	if resp["elapsed_seconds"] != float64(320) {
		t.Errorf("elapsed_seconds: got %v, want 320", resp["elapsed_seconds"])
	}
	addons, ok := resp["addons"].([]interface{})
	if !ok || len(addons) != 1 {
		t.Fatalf("addons: got %v, want 1 entry", resp["addons"])
	}
	first := addons[0].(map[string]interface{})
	if first["status"] != "PENDING" {
		t.Errorf("addon status: got %v, want PENDING", first["status"])
	}
	if first["price"] != "45.00" {
		t.Errorf("addon price: got %v, want 45.00", first["price"])
	}
}

// --- Intake & photos ---

func TestStartIntake_HappyPath(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)
	dbJob := testDBJob(shopID, "INTAKE")

	svc := &mockJobService{
		startIntakeFn: func(ctx context.Context, sid, id uuid.UUID) (database.Job, error) {
			return dbJob, nil
		},
	}
	hub := &mockHub{}
	router := setupJobRouter(svc, hub)

	rr := doAuthRequest(t, router, "POST",
		"/shops/"+shopID.String()+"/jobs/"+dbJob.ID.String()+"/intake/start", nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	if resp["status"] != "INTAKE" {
		t.Errorf("status: got %v, want INTAKE", resp["status"])
	}
	if len(hub.events) != 1 || hub.events[0].Type != ws.EventJobUpdated {
		t.Errorf("broadcast: got %v, want one %s event", hub.events, ws.EventJobUpdated)
	}
}

func TestStartIntake_WrongStatus(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)

	svc := &mockJobService{
		startIntakeFn: func(ctx context.Context, sid, id uuid.UUID) (database.Job, error) {
			return database.Job{}, service.ErrJobStatus
		},
	}
	router := setupJobRouter(svc, nil)

	rr := doAuthRequest(t, router, "POST",
		"/shops/"+shopID.String()+"/jobs/"+uuid.New().String()+"/intake/start", nil, claims)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnprocessableEntity, rr.Body.String())
	}
}

func TestCapturePhoto_MissingImageRef(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)
	router := setupJobRouter(&mockJobService{}, nil)

	rr := doAuthRequest(t, router, "POST",
		"/shops/"+shopID.String()+"/jobs/"+uuid.New().String()+"/photos",
		map[string]interface{}{"zone": "FRONT", "phase": "INTAKE"}, claims)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestCapturePhoto_ReportsCoverage(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)
	dbJob := testDBJob(shopID, "INTAKE")

	svc := &mockJobService{
		capturePhotoFn: func(ctx context.Context, req service.CapturePhotoRequest) (*service.CapturePhotoResult, error) {
			if req.Zone != "FRONT" || req.Phase != "INTAKE" {
				t.Errorf("zone/phase: got %v/%v, want FRONT/INTAKE", req.Zone, req.Phase)
			}
			if req.TakenBy != claims.UserID {
				t.Errorf("taken_by: got %v, want %v", req.TakenBy, claims.UserID)
			}
			return &service.CapturePhotoResult{
				Photo: database.JobPhoto{
					ID: uuid.New(), JobID: dbJob.ID, Zone: "FRONT", Phase: "INTAKE",
					ImageRef: "s3://photos/front.jpg", TakenBy: req.TakenBy, CreatedAt: time.Now(),
				},
				Coverage: job.Coverage{
					Exterior: job.RegionCoverage{Region: "exterior", Covered: 1, Required: 2},
					Interior: job.RegionCoverage{Region: "interior", Covered: 0, Required: 1},
				},
			}, nil
		},
	}
	hub := &mockHub{}
	router := setupJobRouter(svc, hub)

	rr := doAuthRequest(t, router, "POST",
		"/shops/"+shopID.String()+"/jobs/"+dbJob.ID.String()+"/photos",
		map[string]interface{}{"zone": "FRONT", "phase": "INTAKE", "image_ref": "s3://photos/front.jpg"}, claims)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeJSON(t, rr)
	if resp["intake_completed"] != false {
		t.Errorf("intake_completed: got %v, want false", resp["intake_completed"])
	}
	coverage, ok := resp["coverage"].(map[string]interface{})
	if !ok {
		t.Fatalf("coverage: got %v, want object", resp["coverage"])
	}
	exterior := coverage["exterior"].(map[string]interface{})
	if exterior["covered"] != float64(1) || exterior["required"] != float64(2) {
		t.Errorf("exterior coverage: got %v, want covered=1 required=2", exterior)
	}
	if coverage["met"] != false {
		t.Errorf("met: got %v, want false", coverage["met"])
	}
	if coverage["shortfall"] == nil || coverage["shortfall"] == "" {
		t.Error("shortfall: expected a non-empty description")
	}
	// An incomplete intake must not broadcast a job update.
	if len(hub.events) != 0 {
		t.Errorf("broadcast events: got %d, want 0", len(hub.events))
	}
}

func TestCapturePhoto_IntakeCompletionBroadcasts(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)
	dbJob := testDBJob(shopID, "INTAKE")
	dbJob.IntakeCompletedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}

	svc := &mockJobService{
		capturePhotoFn: func(ctx context.Context, req service.CapturePhotoRequest) (*service.CapturePhotoResult, error) {
			return &service.CapturePhotoResult{
				Photo: database.JobPhoto{
					ID: uuid.New(), JobID: dbJob.ID, Zone: "DASHBOARD", Phase: "INTAKE",
					ImageRef: "s3://photos/dash.jpg", TakenBy: req.TakenBy, CreatedAt: time.Now(),
				},
				Coverage: job.Coverage{
					Exterior: job.RegionCoverage{Region: "exterior", Covered: 2, Required: 2},
					Interior: job.RegionCoverage{Region: "interior", Covered: 1, Required: 1},
				},
				IntakeCompleted: true,
				Job:             dbJob,
			}, nil
		},
	}
	hub := &mockHub{}
	router := setupJobRouter(svc, hub)

	rr := doAuthRequest(t, router, "POST",
		"/shops/"+shopID.String()+"/jobs/"+dbJob.ID.String()+"/photos",
		map[string]interface{}{"zone": "DASHBOARD", "phase": "INTAKE", "image_ref": "s3://photos/dash.jpg"}, claims)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeJSON(t, rr)
	if resp["intake_completed"] != true {
		t.Errorf("intake_completed: got %v, want true", resp["intake_completed"])
	}
	if len(hub.events) != 1 || hub.events[0].Type != ws.EventJobUpdated {
		t.Errorf("broadcast: got %v, want one %s event", hub.events, ws.EventJobUpdated)
	}
}

func TestCoverage_ForwardsPhase(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)
	jobID := uuid.New()

	svc := &mockJobService{
		coverageFn: func(ctx context.Context, sid, id uuid.UUID, phase string) (job.Coverage, error) {
			if phase != "COMPLETION" {
				t.Errorf("phase: got %v, want COMPLETION", phase)
			}
			return job.Coverage{
				Exterior: job.RegionCoverage{Region: "exterior", Covered: 1, Required: 1},
				Interior: job.RegionCoverage{Region: "interior", Covered: 1, Required: 1},
			}, nil
		},
	}
	router := setupJobRouter(svc, nil)

	rr := doAuthRequest(t, router, "GET",
		"/shops/"+shopID.String()+"/jobs/"+jobID.String()+"/coverage?phase=COMPLETION", nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	if resp["met"] != true {
		t.Errorf("met: got %v, want true", resp["met"])
	}
	if _, present := resp["shortfall"]; present {
		t.Errorf("shortfall: got %v, want omitted when met", resp["shortfall"])
	}
}

// --- Work & timer ---

func TestStartWork_ForwardsEstimate(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)
	dbJob := testDBJob(shopID, "IN_PROGRESS")
	estimate := "2026-08-31T17:00:00Z"

	svc := &mockJobService{
		startWorkFn: func(ctx context.Context, sid, id uuid.UUID, estimatedPickup string) (database.Job, error) {
			if estimatedPickup != estimate {
				t.Errorf("estimated pickup: got %v, want %v", estimatedPickup, estimate)
			}
			return dbJob, nil
		},
	}
	hub := &mockHub{}
	router := setupJobRouter(svc, hub)

	rr := doAuthRequest(t, router, "POST",
		"/shops/"+shopID.String()+"/jobs/"+dbJob.ID.String()+"/start",
		map[string]interface{}{"estimated_pickup_at": estimate}, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if len(hub.events) != 1 {
		t.Errorf("broadcast events: got %d, want 1", len(hub.events))
	}
}

func TestStartWork_IntakeIncomplete(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)

	svc := &mockJobService{
		startWorkFn: func(ctx context.Context, sid, id uuid.UUID, estimatedPickup string) (database.Job, error) {
			return database.Job{}, service.ErrIntakeIncomplete
		},
	}
	router := setupJobRouter(svc, nil)

	rr := doAuthRequest(t, router, "POST",
		"/shops/"+shopID.String()+"/jobs/"+uuid.New().String()+"/start", nil, claims)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnprocessableEntity, rr.Body.String())
	}
}

func TestPauseTimer_NotRunning(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)

	svc := &mockJobService{
		pauseTimerFn: func(ctx context.Context, sid, id uuid.UUID) (database.Job, error) {
			return database.Job{}, job.ErrTimerNotRunning
		},
	}
	router := setupJobRouter(svc, nil)

	rr := doAuthRequest(t, router, "POST",
		"/shops/"+shopID.String()+"/jobs/"+uuid.New().String()+"/timer/pause", nil, claims)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestCompleteWork_CoverageShortfall(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)

	svc := &mockJobService{
		completeWorkFn: func(ctx context.Context, sid, id uuid.UUID) (database.Job, error) {
			return database.Job{}, service.ErrCoverageShortfall
		},
	}
	router := setupJobRouter(svc, nil)

	rr := doAuthRequest(t, router, "POST",
		"/shops/"+shopID.String()+"/jobs/"+uuid.New().String()+"/complete", nil, claims)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnprocessableEntity, rr.Body.String())
	}
}

// --- Close & cancel ---

func TestCloseJob_ForwardsOrderID(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)
	dbJob := testDBJob(shopID, "CLOSED")
	orderID := uuid.New()

	svc := &mockJobService{
		closeFn: func(ctx context.Context, sid, id uuid.UUID, oid string) (database.Job, error) {
			if oid != orderID.String() {
				t.Errorf("order_id: got %v, want %v", oid, orderID)
			}
			return dbJob, nil
		},
	}
	router := setupJobRouter(svc, nil)

	rr := doAuthRequest(t, router, "POST",
		"/shops/"+shopID.String()+"/jobs/"+dbJob.ID.String()+"/close",
		map[string]interface{}{"order_id": orderID.String()}, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	if resp["status"] != "CLOSED" {
		t.Errorf("status: got %v, want CLOSED", resp["status"])
	}
}

func TestCancelJob_ForwardsRoleFromClaims(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)
	dbJob := testDBJob(shopID, "CANCELLED")

	svc := &mockJobService{
		cancelFn: func(ctx context.Context, req service.CancelJobRequest) (database.Job, error) {
			if req.Role != claims.Role {
				t.Errorf("role: got %v, want %v", req.Role, claims.Role)
			}
			if req.Reason != "customer no-show" {
				t.Errorf("reason: got %v, want customer no-show", req.Reason)
			}
			return dbJob, nil
		},
	}
	router := setupJobRouter(svc, nil)

	rr := doAuthRequest(t, router, "POST",
		"/shops/"+shopID.String()+"/jobs/"+dbJob.ID.String()+"/cancel",
		map[string]interface{}{"reason": "customer no-show"}, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestCancelJob_MissingNotifyChannel(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)

	svc := &mockJobService{
		cancelFn: func(ctx context.Context, req service.CancelJobRequest) (database.Job, error) {
			return database.Job{}, service.ErrNotifyChannelRequired
		},
	}
	router := setupJobRouter(svc, nil)

	rr := doAuthRequest(t, router, "POST",
		"/shops/"+shopID.String()+"/jobs/"+uuid.New().String()+"/cancel",
		map[string]interface{}{"reason": "overbooked"}, claims)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestCancelJob_Forbidden(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)

	svc := &mockJobService{
		cancelFn: func(ctx context.Context, req service.CancelJobRequest) (database.Job, error) {
			return database.Job{}, service.ErrCancelNotAllowed
		},
	}
	router := setupJobRouter(svc, nil)

	rr := doAuthRequest(t, router, "POST",
		"/shops/"+shopID.String()+"/jobs/"+uuid.New().String()+"/cancel", nil, claims)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusForbidden, rr.Body.String())
	}
}

// --- Add-ons ---

func TestProposeAddon_HappyPath(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)
	jobID := uuid.New()
	addon := testDBAddon(jobID, "PENDING")

	svc := &mockJobService{
		proposeAddonFn: func(ctx context.Context, req service.ProposeAddonRequest) (database.JobAddon, error) {
			if req.CustomDescription != "Headlight Restoration" {
				t.Errorf("custom_description: got %v, want Headlight Restoration", req.CustomDescription)
			}
			if req.CustomPrice != "45.00" {
				t.Errorf("custom_price: got %v, want 45.00", req.CustomPrice)
			}
			if req.PickupDelayMinutes != 30 {
				t.Errorf("pickup_delay_minutes: got %d, want 30", req.PickupDelayMinutes)
			}
			if req.CreatedBy != claims.UserID {
				t.Errorf("created_by: got %v, want %v", req.CreatedBy, claims.UserID)
			}
			return addon, nil
		},
	}
	hub := &mockHub{}
	router := setupJobRouter(svc, hub)

	rr := doAuthRequest(t, router, "POST",
		"/shops/"+shopID.String()+"/jobs/"+jobID.String()+"/addons",
		map[string]interface{}{
			"custom_description":   "Headlight Restoration",
			"custom_price":         "45.00",
			"pickup_delay_minutes": 30,
			"notify_channel":       "SMS",
		}, claims)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeJSON(t, rr)
	if resp["status"] != "PENDING" {
		t.Errorf("status: got %v, want PENDING", resp["status"])
	}
	if len(hub.events) != 1 || hub.events[0].Type != ws.EventAddonUpdated {
		t.Errorf("broadcast: got %v, want one %s event", hub.events, ws.EventAddonUpdated)
	}
}

func TestProposeAddon_DuplicateService(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)

	svc := &mockJobService{
		proposeAddonFn: func(ctx context.Context, req service.ProposeAddonRequest) (database.JobAddon, error) {
			return database.JobAddon{}, job.ErrDuplicateService
		},
	}
	router := setupJobRouter(svc, nil)

	rr := doAuthRequest(t, router, "POST",
		"/shops/"+shopID.String()+"/jobs/"+uuid.New().String()+"/addons",
		map[string]interface{}{"service_id": uuid.New().String(), "tier_name": "STANDARD"}, claims)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnprocessableEntity, rr.Body.String())
	}
}

func TestRespondAddon_ParsesApproval(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)
	jobID := uuid.New()
	addon := testDBAddon(jobID, "APPROVED")

	svc := &mockJobService{
		respondAddonFn: func(ctx context.Context, sid, jid, aid uuid.UUID, approved bool) (database.JobAddon, error) {
			if aid != addon.ID {
				t.Errorf("addon_id: got %v, want %v", aid, addon.ID)
			}
			if !approved {
				t.Error("approved: got false, want true")
			}
			return addon, nil
		},
	}
	hub := &mockHub{}
	router := setupJobRouter(svc, hub)

	rr := doAuthRequest(t, router, "POST",
		"/shops/"+shopID.String()+"/jobs/"+jobID.String()+"/addons/"+addon.ID.String()+"/respond",
		map[string]interface{}{"approved": true}, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	if resp["status"] != "APPROVED" {
		t.Errorf("status: got %v, want APPROVED", resp["status"])
	}
	if len(hub.events) != 1 || hub.events[0].Type != ws.EventAddonUpdated {
		t.Errorf("broadcast: got %v, want one %s event", hub.events, ws.EventAddonUpdated)
	}
}

func TestRespondAddon_Expired(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)

	svc := &mockJobService{
		respondAddonFn: func(ctx context.Context, sid, jid, aid uuid.UUID, approved bool) (database.JobAddon, error) {
			return database.JobAddon{}, service.ErrAddonExpired
		},
	}
	router := setupJobRouter(svc, nil)

	rr := doAuthRequest(t, router, "POST",
		"/shops/"+shopID.String()+"/jobs/"+uuid.New().String()+"/addons/"+uuid.New().String()+"/respond",
		map[string]interface{}{"approved": true}, claims)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnprocessableEntity, rr.Body.String())
	}
}

func TestResendAddon_NotResendable(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)

	svc := &mockJobService{
		resendAddonFn: func(ctx context.Context, sid, jid, aid uuid.UUID, channel string) (database.JobAddon, error) {
			return database.JobAddon{}, job.ErrAddonNotResendable
		},
	}
	router := setupJobRouter(svc, nil)

	rr := doAuthRequest(t, router, "POST",
		"/shops/"+shopID.String()+"/jobs/"+uuid.New().String()+"/addons/"+uuid.New().String()+"/resend", nil, claims)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnprocessableEntity, rr.Body.String())
	}
}

func TestResendAddon_ForwardsChannel(t *testing.T) {
	shopID := uuid.New()
	claims := testClaims(shopID)
	jobID := uuid.New()
	addon := testDBAddon(jobID, "PENDING")

	svc := &mockJobService{
		resendAddonFn: func(ctx context.Context, sid, jid, aid uuid.UUID, channel string) (database.JobAddon, error) {
			if channel != "EMAIL" {
				t.Errorf("channel: got %v, want EMAIL", channel)
			}
			return addon, nil
		},
	}
	router := setupJobRouter(svc, nil)

	rr := doAuthRequest(t, router, "POST",
		"/shops/"+shopID.String()+"/jobs/"+jobID.String()+"/addons/"+addon.ID.String()+"/resend",
		map[string]interface{}{"notify_channel": "EMAIL"}, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}
