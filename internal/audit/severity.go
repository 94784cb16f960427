package audit

// Severity classifies an audited action's risk, ordered INFO < LOW < MEDIUM
// < HIGH < CRITICAL. It drives UI coloring and impact badges only; it never
// affects workflow behavior.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Classification is the severity plus impact indicators for one action kind.
type Classification struct {
	Severity       Severity
	AffectsMoney   bool
	AffectsStreaks bool
	AffectsRules   bool
}

// classifications is the single source of truth mapping each audited action
// to its classification. Keep this an explicit enumerated map, not a chain
// of string comparisons, so unmapped actions are visible at a glance.
var classifications = map[string]Classification{
	ActionDangerCreated:  {Severity: SeverityMedium},
	ActionDangerApproved: {Severity: SeverityHigh},
	ActionDangerRejected: {Severity: SeverityMedium},
	ActionDangerExecuted: {Severity: SeverityCritical, AffectsMoney: true, AffectsStreaks: true, AffectsRules: true},

	"update_critical_settings": {Severity: SeverityHigh, AffectsRules: true},
	"delete_group":             {Severity: SeverityCritical, AffectsMoney: true, AffectsStreaks: true, AffectsRules: true},
	"override_contribution":    {Severity: SeverityHigh, AffectsMoney: true},
	"reset_leaderboard":        {Severity: SeverityMedium, AffectsStreaks: true},

	ActionSettingsUpdated:      {Severity: SeverityMedium, AffectsRules: true},
	ActionProofApproved:        {Severity: SeverityLow, AffectsMoney: true, AffectsStreaks: true},
	ActionContributionRecorded: {Severity: SeverityLow, AffectsMoney: true},
	ActionMemberRoleChanged:    {Severity: SeverityMedium, AffectsRules: true},
}

// defaultClassification covers unknown action kinds: informational, no
// impact flags. Unknown actions must never fail classification.
var defaultClassification = Classification{Severity: SeverityInfo}

// Classify returns the classification for an action kind, falling back to
// the default for unknown kinds.
func Classify(action string) Classification {
	if c, ok := classifications[action]; ok {
		return c
	}
	return defaultClassification
}
