package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "famledger/pkg/domain"
)

func TestRenderExport(t *testing.T) {
	familyID := id.NewFamilyID()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	entries := []Entry{
		{
			ID:           id.NewAuditEntryID(),
			FamilyID:     familyID,
			Action:       ActionSettingsUpdated,
			Severity:     SeverityMedium,
			AffectsRules: true,
			HumanSummary: "**Maria** updated family settings",
			BeforeState:  json.RawMessage(`{"budget":100}`),
			AfterState:   json.RawMessage(`{"budget":250}`),
			CreatedAt:    now,
		},
		{
			ID:           id.NewAuditEntryID(),
			FamilyID:     familyID,
			Action:       ActionContributionRecorded,
			Severity:     SeverityLow,
			HumanSummary: "**Maria** recorded a contribution",
			AfterState:   json.RawMessage(`{"amount":25}`),
			CreatedAt:    now,
		},
	}

	html, err := RenderExport(familyID, entries, now)
	require.NoError(t, err)
	out := string(html)

	assert.Contains(t, out, "<strong>Maria</strong> updated family settings")
	assert.Contains(t, out, familyID.String())
	assert.Contains(t, out, "2 entries")

	// Updates diff against the prior state; creations label initial values.
	assert.Contains(t, out, "<th>Before</th>")
	assert.Contains(t, out, "<th>Initial Values</th>")
	assert.Contains(t, out, "<td>Budget</td><td>100</td><td>250</td>")
	assert.Contains(t, out, "Affects: rules")
}
