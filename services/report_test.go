package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestBuildVerificationReport(t *testing.T) {
	cv := &CaseVerification{
		CaseID: "case-1",
		Logs: map[string]*LogVerification{
			"log-1": {
				Original: &VerificationResult{LogID: "log-1", Version: 1, Kind: KindOriginal, Status: VerificationVerified, Verified: true, RecomputedHash: "0xaa", OnChainHash: "0xaa"},
				Edits: []VerificationResult{
					{LogID: "log-1", Version: 2, Kind: "edit v2", Status: VerificationMismatch, RecomputedHash: "0xbb", OnChainHash: "0xcc"},
				},
			},
		},
	}
	generatedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	buf, err := BuildVerificationReport(cv, generatedAt)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetVerification, sheetSummary}, f.GetSheetList())

	rows, err := f.GetRows(sheetVerification)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, reportHeaders, rows[0])
	assert.Equal(t, []string{"log-1", "1", KindOriginal, "verified", "TRUE", "0xaa", "0xaa"}, rows[1])
	assert.Equal(t, "edit v2", rows[2][2])
	assert.Equal(t, "mismatch", rows[2][3])
	assert.Equal(t, "FALSE", rows[2][4])

	summary, err := f.GetRows(sheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Case ID", "case-1"}, summary[0])
	assert.Equal(t, []string{"Generated At", "2026-03-01T09:00:00Z"}, summary[1])
	assert.Equal(t, []string{"Versions", "2"}, summary[2])
	assert.Equal(t, []string{"Verified", "1"}, summary[3])
	assert.Equal(t, []string{"Mismatch", "1"}, summary[4])
}

func TestArchivedReport(t *testing.T) {
	env := newTestEnv(t, withoutWorker())
	ctx := context.Background()
	c := env.activeCase(t, "Smith v. Jones")
	store := NewLocalReportStore(t.TempDir())

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	_, err := store.Put(ctx, ReportKey(c.ID, at), []byte("workbook"), XLSXContentType)
	require.NoError(t, err)
	stamp := ReportStamp(at)

	_, _, err = env.verifier.ArchivedReport(ctx, env.auditorP, store, c.ID, stamp)
	assert.ErrorIs(t, err, ErrUnauthorized, "no grant yet")

	env.grantAuditor(t, c.ID)
	body, contentType, err := env.verifier.ArchivedReport(ctx, env.auditorP, store, c.ID, stamp)
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "workbook", string(data))
	assert.Equal(t, XLSXContentType, contentType)

	t.Run("participants are not auditors", func(t *testing.T) {
		_, _, err := env.verifier.ArchivedReport(ctx, env.lawyerP, store, c.ID, stamp)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("bad and unknown stamps", func(t *testing.T) {
		_, _, err := env.verifier.ArchivedReport(ctx, env.auditorP, store, c.ID, "latest")
		assert.ErrorIs(t, err, ErrValidation)
		_, _, err = env.verifier.ArchivedReport(ctx, env.auditorP, store, c.ID, ReportStamp(at.Add(time.Minute)))
		assert.ErrorIs(t, err, ErrNotFound)
		_, _, err = env.verifier.ArchivedReport(ctx, env.auditorP, nil, c.ID, stamp)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
