package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"law_ledger_app_go/config"
	"law_ledger_app_go/models"
	"law_ledger_app_go/services"
	"law_ledger_app_go/services/ledger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testPassword = "Correct-Horse-42"

func setupTestDB(t *testing.T) *gorm.DB {
	// Use unique shared memory name to isolate tests while allowing shared cache for the anchor worker
	dbName := "mem_" + uuid.New().String()
	testDB, err := gorm.Open(sqlite.Open("file:"+dbName+"?mode=memory&cache=shared&_busy_timeout=5000"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, testDB.AutoMigrate(models.All()...))
	return testDB
}

// testServer is the full HTTP surface over an in-memory ledger
type testServer struct {
	e       *echo.Echo
	h       *Handler
	db      *gorm.DB
	ledger  *ledger.MemoryLedger
	reports *services.LocalReportStore

	lawyer, client, auditor models.User
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	database := setupTestDB(t)
	cfg := &config.Config{Environment: "test", EmailTestMode: true}
	l := ledger.NewMemoryLedger()

	anchor := services.NewHashAnchor(database, l, services.AnchorConfig{
		MaxAttempts:    2,
		BaseBackoff:    time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		AttemptTimeout: time.Second,
	}, nil)
	anchor.Start(context.Background())
	t.Cleanup(anchor.Stop)

	machine := services.NewStatusMachine(database)
	reports := services.NewLocalReportStore(t.TempDir())
	h := New(Deps{
		DB:       database,
		Config:   cfg,
		Tokens:   services.NewTokenService("handler-test-secret-0123456789abcdef", time.Hour),
		Machine:  machine,
		Logs:     services.NewLogStore(database, anchor, machine),
		Anchor:   anchor,
		Verifier: services.NewAuditVerifier(database, l),
		Reports:  reports,
	})

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	h.Register(e, nil)

	s := &testServer{e: e, h: h, db: database, ledger: l, reports: reports}
	s.lawyer = s.createUser(t, "Laura Lawyer", "l1@firm.test", models.RoleLawyer)
	s.client = s.createUser(t, "Carl Client", "c1@client.test", models.RoleClient)
	s.auditor = s.createUser(t, "Ada Auditor", "a@x.com", models.RoleAuditor)
	return s
}

func (s *testServer) createUser(t *testing.T, name, email string, role models.Role) models.User {
	t.Helper()
	user, err := services.CreateUser(s.db, services.CreateUserInput{Name: name, Email: email, Password: testPassword, Role: role})
	require.NoError(t, err)
	return *user
}

func (s *testServer) token(t *testing.T, u models.User) string {
	t.Helper()
	token, err := s.h.Tokens.Issue(&u)
	require.NoError(t, err)
	return token
}

// do sends a request as user; a zero user sends no credential
func (s *testServer) do(t *testing.T, method, path string, u models.User, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if u.ID != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.token(t, u))
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) waitAnchors(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.h.Anchor.WaitIdle(ctx))
}

// activeCase creates a case over HTTP and has both parties sign it
func (s *testServer) activeCase(t *testing.T, title string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/create_case", s.lawyer, map[string]string{
		"title":            title,
		"client_id":        s.client.ID,
		"contract_content": "Engagement terms",
		"lawyer_signature": "Laura Lawyer",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created createCaseResponse
	decode(t, rec, &created)

	rec = s.do(t, http.MethodPost, "/contract/"+created.Case.ID+"/sign", s.client, map[string]string{"client_signature": "Carl Client"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return created.Case.ID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func assertDetail(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	var body detail
	decode(t, rec, &body)
	assert.NotEmpty(t, body.Detail)
}
