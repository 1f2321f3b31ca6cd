package services

import (
	"context"
	"testing"

	"law_ledger_app_go/models"
	"law_ledger_app_go/services/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailedAnchorsAndRetry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.activeCase(t, "Smith v. Jones")

	env.ledger.FailNext(ledger.ErrRejected)
	entry, err := env.logs.Create(ctx, env.lawyerP, c.ID, "Drafted motion", 30)
	require.NoError(t, err)
	env.waitAnchors(t)

	failed, err := FailedAnchorsFor(env.db, env.lawyerP)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, entry.ID, failed[0].LogID)

	other := principalOf(env.createUser(t, "Other Lawyer", "l2@firm.test", models.RoleLawyer))
	failed, err = FailedAnchorsFor(env.db, other)
	require.NoError(t, err)
	assert.Empty(t, failed)

	_, err = FailedAnchorsFor(env.db, env.clientP)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = RetryFailedAnchor(ctx, env.db, env.anchor, other, entry.ID, 1)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = RetryFailedAnchor(ctx, env.db, env.anchor, env.lawyerP, entry.ID, 9)
	assert.ErrorIs(t, err, ErrNotFound)

	rec, err := RetryFailedAnchor(ctx, env.db, env.anchor, env.lawyerP, entry.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.AnchorStatusPending, rec.Status)
	env.waitAnchors(t)

	assert.Equal(t, models.AnchorStatusConfirmed, env.anchorRecord(t, entry.ID, 1).Status)
	failed, err = FailedAnchorsFor(env.db, env.lawyerP)
	require.NoError(t, err)
	assert.Empty(t, failed)
}
