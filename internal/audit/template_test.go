package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	t.Run("known actions use their dedicated template", func(t *testing.T) {
		got := Summarize("reset_leaderboard", TemplateContext{
			Actor:  "Maria",
			Detail: map[string]string{"season": "Spring 2026"},
		})
		assert.Equal(t, "**Maria** reset the leaderboard for season **Spring 2026**", got)
	})

	t.Run("creation template appends the reason when present", func(t *testing.T) {
		got := Summarize(ActionDangerCreated, TemplateContext{
			Actor:  "Maria",
			Entity: "delete_group",
			Reason: "family moved abroad",
		})
		assert.Contains(t, got, "**Maria** requested a critical action")
		assert.Contains(t, got, "family moved abroad")
	})

	t.Run("unknown actions synthesize a generic sentence", func(t *testing.T) {
		got := Summarize("archive_vault", TemplateContext{Actor: "Maria", Role: "TREASURER", Entity: "vault"})
		assert.Equal(t, "TREASURER **Maria** performed archive_vault on vault", got)
	})

	t.Run("missing fields degrade to phrases, never panic", func(t *testing.T) {
		got := Summarize("override_contribution", TemplateContext{})
		assert.Equal(t, "**A member** overrode a contribution", got)

		got = Summarize("unmapped", TemplateContext{})
		assert.Equal(t, "Member **someone** performed unmapped on an entity", got)
	})
}

func TestStripMarkdown(t *testing.T) {
	assert.Equal(t, "Maria deleted the family group Home",
		StripMarkdown("**Maria** deleted the family group **Home**"))
}

func TestMarkdownToHTML(t *testing.T) {
	assert.Equal(t, "<strong>Maria</strong> reset the leaderboard",
		MarkdownToHTML("**Maria** reset the leaderboard"))
	assert.Equal(t, "plain", MarkdownToHTML("plain"))
	assert.Equal(t, "<strong>dangling</strong>", MarkdownToHTML("**dangling"))
}
