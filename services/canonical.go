package services

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"law_ledger_app_go/models"

	"golang.org/x/crypto/sha3"
)

// Canonical encoding of anchored log content.
// Field order, delimiter, escaping and timestamp layout are frozen: changing any of
// them invalidates every hash already committed to the ledger.
const (
	canonicalDelimiter  = "|"
	canonicalTimeLayout = "2006-01-02T15:04:05.000000Z"
)

// LogContent is the subset of a log version covered by its hash
type LogContent struct {
	CaseID      string
	LogID       string
	Version     int
	Description string
	TimeSpent   int
	EditedAt    time.Time
}

// ContentOf extracts the hashed content of a stored version
func ContentOf(v *models.LogVersion) LogContent {
	return LogContent{
		CaseID:      v.CaseID,
		LogID:       v.LogID,
		Version:     v.Version,
		Description: v.Description,
		TimeSpent:   v.TimeSpent,
		EditedAt:    v.EditedAt,
	}
}

var canonicalEscaper = strings.NewReplacer(`\`, `\\`, canonicalDelimiter, `\`+canonicalDelimiter)

// Canonicalize renders content as case_id|log_id|version|description|time_spent|edited_at.
// Backslashes and delimiters inside the description are escaped.
func Canonicalize(c LogContent) []byte {
	fields := []string{
		c.CaseID,
		c.LogID,
		strconv.Itoa(c.Version),
		canonicalEscaper.Replace(c.Description),
		strconv.Itoa(c.TimeSpent),
		c.EditedAt.UTC().Format(canonicalTimeLayout),
	}
	return []byte(strings.Join(fields, canonicalDelimiter))
}

// HashContent returns the 0x-prefixed Keccak-256 digest of the canonical bytes
func HashContent(c LogContent) string {
	return keccakHex(Canonicalize(c))
}

func keccakHex(b []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// canonicalTime normalizes a timestamp to the precision the encoding keeps
func canonicalTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
