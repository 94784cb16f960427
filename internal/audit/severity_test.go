package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Run("group deletion is critical with every impact flag", func(t *testing.T) {
		c := Classify("delete_group")
		assert.Equal(t, SeverityCritical, c.Severity)
		assert.True(t, c.AffectsMoney)
		assert.True(t, c.AffectsStreaks)
		assert.True(t, c.AffectsRules)
	})

	t.Run("contribution override touches money only", func(t *testing.T) {
		c := Classify("override_contribution")
		assert.Equal(t, SeverityHigh, c.Severity)
		assert.True(t, c.AffectsMoney)
		assert.False(t, c.AffectsStreaks)
		assert.False(t, c.AffectsRules)
	})

	t.Run("leaderboard reset touches streaks only", func(t *testing.T) {
		c := Classify("reset_leaderboard")
		assert.Equal(t, SeverityMedium, c.Severity)
		assert.True(t, c.AffectsStreaks)
		assert.False(t, c.AffectsMoney)
	})

	t.Run("unknown actions fall back to info with no flags", func(t *testing.T) {
		c := Classify("some_future_action")
		assert.Equal(t, Classification{Severity: SeverityInfo}, c)
	})
}
