package audit

import (
	"fmt"
	"strings"
)

// TemplateContext carries the facts a summary template may mention. Missing
// fields degrade to generic phrases; templates never fail.
type TemplateContext struct {
	Actor  string
	Role   string
	Action string
	Entity string
	Reason string
	// Detail holds action-specific fragments ("amount", "season", ...).
	Detail map[string]string
}

func (c TemplateContext) detail(key string) string {
	if c.Detail == nil {
		return ""
	}
	return c.Detail[key]
}

// templates maps each action to its summary builder. Summaries use markdown
// bold markers; call StripMarkdown or MarkdownToHTML for other surfaces.
var templates = map[string]func(TemplateContext) string{
	ActionDangerCreated: func(c TemplateContext) string {
		s := fmt.Sprintf("**%s** requested a critical action: **%s**", actorPhrase(c), entityPhrase(c))
		if c.Reason != "" {
			s += fmt.Sprintf(" — reason: %s", c.Reason)
		}
		return s
	},
	ActionDangerApproved: func(c TemplateContext) string {
		return fmt.Sprintf("**%s** approved the pending critical action **%s**", actorPhrase(c), entityPhrase(c))
	},
	ActionDangerRejected: func(c TemplateContext) string {
		s := fmt.Sprintf("**%s** rejected the pending critical action **%s**", actorPhrase(c), entityPhrase(c))
		if c.Reason != "" {
			s += fmt.Sprintf(" — reason: %s", c.Reason)
		}
		return s
	},
	ActionDangerExecuted: func(c TemplateContext) string {
		return fmt.Sprintf("Critical action **%s** was executed by %s", entityPhrase(c), actorPhrase(c))
	},

	"update_critical_settings": func(c TemplateContext) string {
		return fmt.Sprintf("**%s** changed critical family settings", actorPhrase(c))
	},
	"delete_group": func(c TemplateContext) string {
		return fmt.Sprintf("**%s** deleted the family group **%s**", actorPhrase(c), entityPhrase(c))
	},
	"override_contribution": func(c TemplateContext) string {
		s := fmt.Sprintf("**%s** overrode a contribution", actorPhrase(c))
		if amount := c.detail("amount"); amount != "" {
			s += fmt.Sprintf(" to **%s**", amount)
		}
		if target := c.detail("target"); target != "" {
			s += fmt.Sprintf(" for %s", target)
		}
		return s
	},
	"reset_leaderboard": func(c TemplateContext) string {
		s := fmt.Sprintf("**%s** reset the leaderboard", actorPhrase(c))
		if season := c.detail("season"); season != "" {
			s += fmt.Sprintf(" for season **%s**", season)
		}
		return s
	},

	ActionSettingsUpdated: func(c TemplateContext) string {
		return fmt.Sprintf("**%s** updated family settings", actorPhrase(c))
	},
	ActionProofApproved: func(c TemplateContext) string {
		return fmt.Sprintf("**%s** approved a proof from %s", actorPhrase(c), orPhrase(c.detail("target"), "a member"))
	},
	ActionContributionRecorded: func(c TemplateContext) string {
		s := fmt.Sprintf("**%s** recorded a contribution", actorPhrase(c))
		if amount := c.detail("amount"); amount != "" {
			s += fmt.Sprintf(" of **%s**", amount)
		}
		return s
	},
	ActionMemberRoleChanged: func(c TemplateContext) string {
		return fmt.Sprintf("**%s** changed the role of %s", actorPhrase(c), orPhrase(c.detail("target"), "a member"))
	},
}

// Summarize renders the human-readable summary for an action. Unknown
// actions fall back to a generic synthesized sentence.
func Summarize(action string, c TemplateContext) string {
	if c.Action == "" {
		c.Action = action
	}
	if tpl, ok := templates[action]; ok {
		return tpl(c)
	}
	return fmt.Sprintf("%s **%s** performed %s on %s",
		orPhrase(c.Role, "Member"),
		orPhrase(c.Actor, "someone"),
		orPhrase(c.Action, "an action"),
		orPhrase(c.Entity, "an entity"),
	)
}

func actorPhrase(c TemplateContext) string {
	return orPhrase(c.Actor, "A member")
}

func entityPhrase(c TemplateContext) string {
	return orPhrase(c.Entity, "the family")
}

func orPhrase(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// StripMarkdown removes bold markers for plaintext surfaces like exports.
func StripMarkdown(s string) string {
	return strings.ReplaceAll(s, "**", "")
}

// MarkdownToHTML converts bold markers to <strong> tags. Only the bold
// subset used by templates is supported.
func MarkdownToHTML(s string) string {
	var b strings.Builder
	open := false
	for {
		idx := strings.Index(s, "**")
		if idx == -1 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:idx])
		if open {
			b.WriteString("</strong>")
		} else {
			b.WriteString("<strong>")
		}
		open = !open
		s = s[idx+2:]
	}
	if open {
		// Unbalanced marker: close the tag rather than emit broken HTML.
		b.WriteString("</strong>")
	}
	return b.String()
}
