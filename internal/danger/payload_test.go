package danger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "famledger/pkg/domain-errors"
)

func TestDecodePayload(t *testing.T) {
	t.Run("decodes each known kind into its variant", func(t *testing.T) {
		settings, err := DecodePayload(KindUpdateCriticalSettings, json.RawMessage(`{"settings":{"weeklyBudget":250}}`))
		require.NoError(t, err)
		assert.Equal(t, SettingsChange{Settings: map[string]any{"weeklyBudget": float64(250)}}, settings)

		deletion, err := DecodePayload(KindDeleteGroup, json.RawMessage(`{"confirm":"our-family"}`))
		require.NoError(t, err)
		assert.Equal(t, GroupDeletion{Confirm: "our-family"}, deletion)

		override, err := DecodePayload(KindOverrideContribution, json.RawMessage(`{"contributionId":"c-1","amount":50,"note":"bank import"}`))
		require.NoError(t, err)
		assert.Equal(t, ContributionOverride{ContributionID: "c-1", Amount: 50, Note: "bank import"}, override)

		reset, err := DecodePayload(KindResetLeaderboard, json.RawMessage(`{"season":"2026-spring"}`))
		require.NoError(t, err)
		assert.Equal(t, LeaderboardReset{Season: "2026-spring"}, reset)
	})

	t.Run("an absent payload decodes to the zero variant", func(t *testing.T) {
		decoded, err := DecodePayload(KindResetLeaderboard, nil)
		require.NoError(t, err)
		assert.Equal(t, LeaderboardReset{}, decoded)
	})

	t.Run("malformed JSON is rejected", func(t *testing.T) {
		_, err := DecodePayload(KindDeleteGroup, json.RawMessage(`{not json`))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("a payload of the wrong shape is rejected", func(t *testing.T) {
		_, err := DecodePayload(KindOverrideContribution, json.RawMessage(`{"amount":"fifty"}`))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("unknown kinds are preserved raw", func(t *testing.T) {
		raw := json.RawMessage(`{"currency":"gold"}`)
		decoded, err := DecodePayload(ActionKind("mint_currency"), raw)
		require.NoError(t, err)
		assert.Equal(t, RawPayload{Kind: ActionKind("mint_currency"), Data: raw}, decoded)
	})
}
