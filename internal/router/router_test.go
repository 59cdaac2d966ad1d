package router

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	authhandler "github.com/jwalitptl/lifeflow-api/internal/handler/auth"
	certificatehandler "github.com/jwalitptl/lifeflow-api/internal/handler/certificate"
	donorhandler "github.com/jwalitptl/lifeflow-api/internal/handler/donor"
	healthhandler "github.com/jwalitptl/lifeflow-api/internal/handler/health"
	notificationhandler "github.com/jwalitptl/lifeflow-api/internal/handler/notification"
	requesthandler "github.com/jwalitptl/lifeflow-api/internal/handler/request"
	"github.com/jwalitptl/lifeflow-api/internal/middleware"
	"github.com/jwalitptl/lifeflow-api/internal/repository/memory"
	"github.com/jwalitptl/lifeflow-api/internal/service/assignment"
	authservice "github.com/jwalitptl/lifeflow-api/internal/service/auth"
	"github.com/jwalitptl/lifeflow-api/internal/service/certificate"
	donorservice "github.com/jwalitptl/lifeflow-api/internal/service/donor"
	"github.com/jwalitptl/lifeflow-api/internal/service/notification"
	"github.com/jwalitptl/lifeflow-api/internal/service/optin"
	"github.com/jwalitptl/lifeflow-api/internal/service/request"
	"github.com/jwalitptl/lifeflow-api/internal/storage"
	"github.com/jwalitptl/lifeflow-api/pkg/auth"
	"github.com/jwalitptl/lifeflow-api/pkg/logger"
	"github.com/jwalitptl/lifeflow-api/pkg/security"
)

// noopDispatcher drops fan-out effects so handler tests stay synchronous.
type noopDispatcher struct{}

func (noopDispatcher) Dispatch(...*notification.Message) {}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	engine *gin.Engine
	tokens *auth.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := logger.NewLogger(nil)
	tokens := auth.NewManager("test-secret", time.Hour)
	fanout := noopDispatcher{}

	users := memory.NewUserRepository()
	donors := memory.NewDonorRepository()
	requests := memory.NewBloodRequestRepository()
	optIns := memory.NewOptInRepository()
	certs := memory.NewCertificateRepository()
	notifications := memory.NewNotificationRepository()
	outbox := memory.NewOutboxRepository()

	photos, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	certSvc := certificate.NewService(certs, donors, users, fanout, log)
	requestSvc := request.NewService(requests, donors, users, outbox, certSvc, fanout, log, 0)
	optInSvc := optin.NewService(optIns, requests, donors, users, fanout, log, 0)
	assignmentSvc := assignment.NewService(requests, optIns, donors, users, fanout, log, 0)
	donorSvc := donorservice.NewService(donors, optIns, log, 0)
	authSvc := authservice.NewService(users, donors, security.NewBcryptHasher(4), tokens, log)
	notificationSvc := notification.NewService(notifications, nil, nil, log)

	r := NewRouter(
		middleware.NewAuthMiddleware(tokens),
		authhandler.NewHandler(authSvc),
		requesthandler.NewHandler(requestSvc, optInSvc, assignmentSvc, donorSvc, photos),
		donorhandler.NewHandler(donorSvc),
		certificatehandler.NewHandler(certSvc, donorSvc),
		notificationhandler.NewHandler(notificationSvc),
		healthhandler.NewHandler(nil, nil),
		Config{RateLimit: rate.Limit(1000), RateBurst: 1000},
	)
	r.Setup()

	return &testServer{engine: r.Engine(), tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) (int, envelope) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env),
			"response body: %s", rec.Body.String())
	}
	return rec.Code, env
}

func (s *testServer) registerAndLogin(t *testing.T, email, group string) string {
	t.Helper()

	code, _ := s.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{
		"name":        "Test Donor",
		"email":       email,
		"password":    "password123",
		"blood_group": group,
	}, "")
	require.Equal(t, http.StatusCreated, code)

	code, env := s.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    email,
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusOK, code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	token, err := s.tokens.Generate(uuid.New(), "admin@example.com", "admin")
	require.NoError(t, err)
	return token
}

func TestHealthLiveness(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodGet, "/api/v1/donors/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/donors/me", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRegisterValidatesBloodGroup(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{
		"name":        "Bad Group",
		"email":       "bad@example.com",
		"password":    "password123",
		"blood_group": "C+",
	}, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDonorProfile(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAndLogin(t, "donor@example.com", "O-")

	code, env := s.do(t, http.MethodGet, "/api/v1/donors/me", nil, token)
	require.Equal(t, http.StatusOK, code)

	var profile struct {
		BloodGroup string `json:"blood_group"`
		Available  bool   `json:"available"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "O-", profile.BloodGroup)
	assert.True(t, profile.Available)

	code, env = s.do(t, http.MethodGet, "/api/v1/donors/me/eligibility", nil, token)
	require.Equal(t, http.StatusOK, code)

	var elig struct {
		Eligible bool `json:"eligible"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &elig))
	assert.True(t, elig.Eligible)
}

func TestAdminRoutesRejectDonors(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAndLogin(t, "donor@example.com", "A+")

	code, _ := s.do(t, http.MethodGet, "/api/v1/requests", nil, token)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRequestWorkflow(t *testing.T) {
	s := newTestServer(t)
	requesterToken := s.registerAndLogin(t, "requester@example.com", "A+")
	donorToken := s.registerAndLogin(t, "donor@example.com", "B+")
	adminToken := s.adminToken(t)

	// Requester submits, admin approves.
	code, env := s.do(t, http.MethodPost, "/api/v1/requests", gin.H{
		"blood_group":  "B+",
		"units":        2,
		"urgency":      "high",
		"scheduled_at": time.Now().Add(72 * time.Hour).Format(time.RFC3339),
		"hospital":     "City Hospital",
		"location":     "Springfield",
	}, requesterToken)
	require.Equal(t, http.StatusCreated, code)

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "pending", created.Status)

	code, env = s.do(t, http.MethodPost, "/api/v1/requests/"+created.ID+"/approve", nil, adminToken)
	require.Equal(t, http.StatusOK, code)

	var approved struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &approved))
	assert.Equal(t, "approved", approved.Status)

	// Approving twice conflicts.
	code, _ = s.do(t, http.MethodPost, "/api/v1/requests/"+created.ID+"/approve", nil, adminToken)
	assert.Equal(t, http.StatusConflict, code)

	// Matching donor sees it and opts in.
	code, env = s.do(t, http.MethodGet, "/api/v1/requests/open", nil, donorToken)
	require.Equal(t, http.StatusOK, code)

	var open []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &open))
	require.Len(t, open, 1)
	assert.Equal(t, created.ID, open[0].ID)

	code, env = s.do(t, http.MethodPost, "/api/v1/requests/"+created.ID+"/opt-in", nil, donorToken)
	require.Equal(t, http.StatusCreated, code)

	var optedIn struct {
		DonorID string `json:"donor_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &optedIn))

	// Duplicate opt-in conflicts.
	code, _ = s.do(t, http.MethodPost, "/api/v1/requests/"+created.ID+"/opt-in", nil, donorToken)
	assert.Equal(t, http.StatusConflict, code)

	// Requester with the wrong blood group cannot opt in.
	code, _ = s.do(t, http.MethodPost, "/api/v1/requests/"+created.ID+"/opt-in", nil, requesterToken)
	assert.Equal(t, http.StatusConflict, code)

	// Admin assigns the opted-in donor.
	code, env = s.do(t, http.MethodPost, "/api/v1/requests/"+created.ID+"/assign", gin.H{
		"donor_id": optedIn.DonorID,
	}, adminToken)
	require.Equal(t, http.StatusOK, code)

	var assigned struct {
		AssignedDonorID string `json:"assigned_donor_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &assigned))
	assert.Equal(t, optedIn.DonorID, assigned.AssignedDonorID)

	// Donation completes with a proof photo; a certificate lands in the
	// admin review queue and the photo is served back.
	code, env = s.doMultipart(t, "/api/v1/requests/"+created.ID+"/donated", adminToken)
	require.Equal(t, http.StatusOK, code)

	var donated struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &donated))
	assert.Equal(t, "donated", donated.Status)

	code, env = s.do(t, http.MethodGet, "/api/v1/certificates/pending", nil, adminToken)
	require.Equal(t, http.StatusOK, code)

	var pending []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	require.Len(t, pending, 1)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/requests/"+created.ID+"/photo", nil)
	req.Header.Set("Authorization", "Bearer "+donorToken)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
}

func (s *testServer) doMultipart(t *testing.T, path, token string) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="photo"; filename="proof.jpg"`},
		"Content-Type":        {"image/jpeg"},
	})
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env),
			"response body: %s", rec.Body.String())
	}
	return rec.Code, env
}
