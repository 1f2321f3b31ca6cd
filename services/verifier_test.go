package services

import (
	"context"
	"testing"
	"time"

	"law_ledger_app_go/models"
	"law_ledger_app_go/services/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContractDisputeScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 1. Open the case; it waits for signatures
	c, contract, err := CreateCase(ctx, env.db, env.lawyerP, CreateCaseInput{
		Title:           "Contract Dispute",
		ClientID:        env.client.ID,
		ContractContent: "Engagement terms",
	})
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusPending, c.Status)
	assert.False(t, contract.IsFullySigned())

	// 2. Both parties sign
	_, err = env.machine.SignContract(ctx, env.lawyerP, c.ID, "L1")
	require.NoError(t, err)
	signed, err := env.machine.SignContract(ctx, env.clientP, c.ID, "C1")
	require.NoError(t, err)
	assert.True(t, signed.IsFullySigned())

	loaded, err := LoadCase(env.db, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusActive, loaded.Status)

	// 3. Log work and verify the anchor
	entry, err := env.logs.Create(ctx, env.lawyerP, c.ID, "Drafted motion", 30)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Version)
	env.waitAnchors(t)
	assert.Equal(t, models.AnchorStatusConfirmed, env.anchorRecord(t, entry.ID, 1).Status)

	env.grantAuditor(t, c.ID)
	result, err := env.verifier.VerifyLog(ctx, env.auditorP, c.ID, entry.ID, 0)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, VerificationVerified, result.Status)

	// 4. Edit and inspect history
	edited, err := env.logs.Edit(ctx, env.lawyerP, entry.ID, "Drafted and filed motion", 45)
	require.NoError(t, err)
	assert.Equal(t, 2, edited.Version)
	env.waitAnchors(t)

	history, err := env.logs.History(ctx, env.lawyerP, entry.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Drafted motion", history[0].Description)
	assert.Equal(t, 30, history[0].TimeSpent)

	// 5. Verify the whole case
	cv, err := env.verifier.VerifyCase(ctx, env.auditorP, c.ID)
	require.NoError(t, err)
	rows := cv.Rows()
	require.Len(t, rows, 2)

	assert.Equal(t, 1, rows[0].Version)
	assert.Equal(t, KindOriginal, rows[0].Kind)
	assert.True(t, rows[0].Verified)
	assert.Equal(t, 2, rows[1].Version)
	assert.Equal(t, "edit v2", rows[1].Kind)
	assert.True(t, rows[1].Verified)
	assert.Equal(t, rows[1].OnChainHash, rows[1].RecomputedHash)

	lv := cv.Logs[entry.ID]
	require.NotNil(t, lv)
	require.NotNil(t, lv.Original)
	assert.Len(t, lv.Edits, 1)
}

// anchoredLog creates a case with one confirmed log readable by the auditor
func anchoredLog(t *testing.T, env *testEnv) (*models.Case, *models.LogEntry) {
	t.Helper()
	c := env.activeCase(t, "Smith v. Jones")
	entry, err := env.logs.Create(context.Background(), env.lawyerP, c.ID, "Drafted motion", 30)
	require.NoError(t, err)
	env.waitAnchors(t)
	env.grantAuditor(t, c.ID)
	return c, entry
}

func TestVerifyDetectsTamperedVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c, entry := anchoredLog(t, env)

	// Raw SQL bypasses the immutability hooks
	require.NoError(t, env.db.Exec(
		"UPDATE log_versions SET time_spent = ? WHERE log_id = ? AND version = 1", 300, entry.ID).Error)

	result, err := env.verifier.VerifyLog(ctx, env.auditorP, c.ID, entry.ID, 1)
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, VerificationMismatch, result.Status)
	assert.NotEqual(t, result.OnChainHash, result.RecomputedHash)
}

func TestVerifyDetectsTamperedCurrentEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c, entry := anchoredLog(t, env)

	require.NoError(t, env.db.Exec(
		"UPDATE log_entries SET description = ? WHERE id = ?", "Drafted nothing", entry.ID).Error)

	cv, err := env.verifier.VerifyCase(ctx, env.auditorP, c.ID)
	require.NoError(t, err)
	rows := cv.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, VerificationMismatch, rows[0].Status)
	assert.Contains(t, rows[0].Detail, "current entry")
}

func TestVerifyDetectsAlteredLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c, entry := anchoredLog(t, env)

	env.ledger.Overwrite(ledger.Key{LogID: entry.ID, Version: 1}, testHash)

	result, err := env.verifier.VerifyLog(ctx, env.auditorP, c.ID, entry.ID, 1)
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, VerificationMismatch, result.Status)
	assert.Equal(t, testHash, result.OnChainHash)
}

func TestVerifyPendingAnchor(t *testing.T) {
	env := newTestEnv(t, withoutWorker())
	ctx := context.Background()
	c := env.activeCase(t, "Smith v. Jones")
	entry, err := env.logs.Create(ctx, env.lawyerP, c.ID, "Drafted motion", 30)
	require.NoError(t, err)
	env.grantAuditor(t, c.ID)

	result, err := env.verifier.VerifyLog(ctx, env.auditorP, c.ID, entry.ID, 0)
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, VerificationPending, result.Status)
	assert.Empty(t, result.OnChainHash)
}

func TestVerifyFailedAnchorIsUnavailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.ledger.FailNext(ledger.ErrRejected)
	c, entry := anchoredLog(t, env)
	require.Equal(t, models.AnchorStatusFailed, env.anchorRecord(t, entry.ID, 1).Status)

	result, err := env.verifier.VerifyLog(ctx, env.auditorP, c.ID, entry.ID, 1)
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, VerificationUnavailable, result.Status)
}

func TestVerifyAuthorization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c, entry := anchoredLog(t, env)

	_, err := env.verifier.VerifyLog(ctx, env.lawyerP, c.ID, entry.ID, 0)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.verifier.VerifyCase(ctx, env.clientP, c.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	stranger := principalOf(env.createUser(t, "Other Auditor", "b@x.com", models.RoleAuditor))
	_, err = env.verifier.VerifyCase(ctx, stranger, c.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Grants stop working once they expire
	env.verifier.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	_, err = env.verifier.VerifyCase(ctx, env.auditorP, c.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerifyUnknownLogAndVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c, entry := anchoredLog(t, env)

	_, err := env.verifier.VerifyLog(ctx, env.auditorP, c.ID, "missing", 0)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.verifier.VerifyLog(ctx, env.auditorP, c.ID, entry.ID, 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCaseVerificationRowsAreSorted(t *testing.T) {
	cv := &CaseVerification{Logs: map[string]*LogVerification{
		"b": {Original: &VerificationResult{LogID: "b", Version: 1}},
		"a": {
			Original: &VerificationResult{LogID: "a", Version: 1},
			Edits: []VerificationResult{
				{LogID: "a", Version: 3},
				{LogID: "a", Version: 2},
			},
		},
	}}

	rows := cv.Rows()
	require.Len(t, rows, 4)
	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = r.LogID + versionKind(r.Version)
	}
	assert.Equal(t, []string{"aoriginal", "aedit v2", "aedit v3", "boriginal"}, got)
}
