package services

import (
	"testing"
	"time"

	"law_ledger_app_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantAuditAccessExpiry(t *testing.T) {
	env := newTestEnv(t, withoutWorker())
	c := env.pendingCase(t, "Smith v. Jones")
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	grant, err := GrantAuditAccess(env.db, env.lawyerP, c.ID, " A@X.com ", 1, now)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", grant.AuditorEmail)
	assert.Equal(t, now.Add(time.Hour), grant.ExpiresAt)

	ok, err := AuthorizeAuditor(env.db, c.ID, "a@x.com", now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = AuthorizeAuditor(env.db, c.ID, "a@x.com", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	// Expiry is exclusive
	ok, err = AuthorizeAuditor(env.db, c.ID, "a@x.com", now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = AuthorizeAuditor(env.db, c.ID, "b@x.com", now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGrantAuditAccessClampsAndExtends(t *testing.T) {
	env := newTestEnv(t, withoutWorker())
	c := env.pendingCase(t, "Smith v. Jones")
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	grant, err := GrantAuditAccess(env.db, env.lawyerP, c.ID, "a@x.com", 0, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(MinGrantHours*time.Hour), grant.ExpiresAt)

	// Re-granting overwrites the expiry
	_, err = GrantAuditAccess(env.db, env.lawyerP, c.ID, "a@x.com", 48, now)
	require.NoError(t, err)

	var grants []models.AccessGrant
	require.NoError(t, env.db.Find(&grants).Error)
	require.Len(t, grants, 1)
	assert.True(t, grants[0].ExpiresAt.Equal(now.Add(48*time.Hour)))
}

func TestGrantAuditAccessRules(t *testing.T) {
	env := newTestEnv(t, withoutWorker())
	c := env.pendingCase(t, "Smith v. Jones")
	now := time.Now()

	_, err := GrantAuditAccess(env.db, env.clientP, c.ID, "a@x.com", 24, now)
	assert.ErrorIs(t, err, ErrUnauthorized)

	other := principalOf(env.createUser(t, "Other Lawyer", "l2@firm.test", models.RoleLawyer))
	_, err = GrantAuditAccess(env.db, other, c.ID, "a@x.com", 24, now)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = GrantAuditAccess(env.db, env.lawyerP, c.ID, "not-an-email", 24, now)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = GrantAuditAccess(env.db, env.lawyerP, "missing", "a@x.com", 24, now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevokeAuditAccess(t *testing.T) {
	env := newTestEnv(t, withoutWorker())
	c := env.pendingCase(t, "Smith v. Jones")
	now := time.Now()

	_, err := GrantAuditAccess(env.db, env.lawyerP, c.ID, "a@x.com", 24, now)
	require.NoError(t, err)

	ids, err := GrantedCaseIDs(env.db, "a@x.com", now)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, ids)

	assert.ErrorIs(t, RevokeAuditAccess(env.db, env.clientP, c.ID, "a@x.com", now), ErrUnauthorized)
	require.NoError(t, RevokeAuditAccess(env.db, env.lawyerP, c.ID, "a@x.com", now))

	ok, err := AuthorizeAuditor(env.db, c.ID, "a@x.com", now)
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err = GrantedCaseIDs(env.db, "a@x.com", now)
	require.NoError(t, err)
	assert.Empty(t, ids)

	assert.ErrorIs(t, RevokeAuditAccess(env.db, env.lawyerP, c.ID, "b@x.com", now), ErrNotFound)
}
