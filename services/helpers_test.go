package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"law_ledger_app_go/models"
	"law_ledger_app_go/services/ledger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupCoreTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Unique shared memory name isolates tests while letting the anchor worker share the database
	dbName := "mem_" + uuid.New().String()
	testDB, err := gorm.Open(sqlite.Open("file:"+dbName+"?mode=memory&cache=shared&_busy_timeout=5000"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	// One connection serializes writers the way WAL + busy_timeout does on disk
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, testDB.AutoMigrate(models.All()...))
	return testDB
}

// recordingNotifier captures anchor failure notifications
type recordingNotifier struct {
	mu      sync.Mutex
	records []models.AnchorRecord
}

func (n *recordingNotifier) AnchorFailed(ctx context.Context, record *models.AnchorRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, *record)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.records)
}

// fastAnchorConfig keeps retry tests quick
var fastAnchorConfig = AnchorConfig{
	MaxAttempts:    3,
	BaseBackoff:    time.Millisecond,
	MaxBackoff:     5 * time.Millisecond,
	AttemptTimeout: 500 * time.Millisecond,
	QueueSize:      64,
}

type testEnv struct {
	db       *gorm.DB
	ledger   *ledger.MemoryLedger
	notifier *recordingNotifier
	anchor   *HashAnchor
	machine  *StatusMachine
	logs     *LogStore
	verifier *AuditVerifier

	lawyer, client, auditor    models.User
	lawyerP, clientP, auditorP Principal
}

type envOption func(*envSettings)

type envSettings struct {
	cfg     AnchorConfig
	started bool
	ledger  ledger.Ledger
}

// withoutWorker leaves every anchor pending
func withoutWorker() envOption {
	return func(s *envSettings) { s.started = false }
}

func withAnchorConfig(cfg AnchorConfig) envOption {
	return func(s *envSettings) { s.cfg = cfg }
}

func withLedger(l ledger.Ledger) envOption {
	return func(s *envSettings) { s.ledger = l }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	settings := envSettings{cfg: fastAnchorConfig, started: true}
	for _, opt := range opts {
		opt(&settings)
	}

	env := &testEnv{
		db:       setupCoreTestDB(t),
		ledger:   ledger.NewMemoryLedger(),
		notifier: &recordingNotifier{},
	}
	var l ledger.Ledger = env.ledger
	if settings.ledger != nil {
		l = settings.ledger
	}

	env.anchor = NewHashAnchor(env.db, l, settings.cfg, env.notifier)
	if settings.started {
		env.anchor.Start(context.Background())
		t.Cleanup(env.anchor.Stop)
	}
	env.machine = NewStatusMachine(env.db)
	env.logs = NewLogStore(env.db, env.anchor, env.machine)
	env.verifier = NewAuditVerifier(env.db, l)

	env.lawyer = env.createUser(t, "Laura Lawyer", "l1@firm.test", models.RoleLawyer)
	env.client = env.createUser(t, "Carl Client", "c1@client.test", models.RoleClient)
	env.auditor = env.createUser(t, "Ada Auditor", "a@x.com", models.RoleAuditor)
	env.lawyerP = principalOf(env.lawyer)
	env.clientP = principalOf(env.client)
	env.auditorP = principalOf(env.auditor)
	return env
}

func principalOf(u models.User) Principal {
	return Principal{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func (e *testEnv) createUser(t *testing.T, name, email string, role models.Role) models.User {
	t.Helper()
	u := models.User{Name: name, Email: email, Password: "unused", Role: role, IsActive: true}
	require.NoError(t, e.db.Create(&u).Error)
	return u
}

// pendingCase opens a case that nobody has signed yet
func (e *testEnv) pendingCase(t *testing.T, title string) *models.Case {
	t.Helper()
	c, _, err := CreateCase(context.Background(), e.db, e.lawyerP, CreateCaseInput{
		Title:           title,
		ClientID:        e.client.ID,
		ContractContent: "Engagement terms",
	})
	require.NoError(t, err)
	return c
}

// activeCase opens a case and has both parties sign
func (e *testEnv) activeCase(t *testing.T, title string) *models.Case {
	t.Helper()
	c := e.pendingCase(t, title)
	ctx := context.Background()
	_, err := e.machine.SignContract(ctx, e.lawyerP, c.ID, "Laura Lawyer")
	require.NoError(t, err)
	_, err = e.machine.SignContract(ctx, e.clientP, c.ID, "Carl Client")
	require.NoError(t, err)

	active, err := LoadCase(e.db, c.ID)
	require.NoError(t, err)
	require.Equal(t, models.CaseStatusActive, active.Status)
	return active
}

func (e *testEnv) grantAuditor(t *testing.T, caseID string) {
	t.Helper()
	_, err := GrantAuditAccess(e.db, e.lawyerP, caseID, e.auditor.Email, 24, time.Now())
	require.NoError(t, err)
}

// waitAnchors blocks until the anchor queue drains
func (e *testEnv) waitAnchors(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.anchor.WaitIdle(ctx))
}

func (e *testEnv) anchorRecord(t *testing.T, logID string, version int) *models.AnchorRecord {
	t.Helper()
	rec, err := e.anchor.Record(context.Background(), logID, version)
	require.NoError(t, err)
	return rec
}
