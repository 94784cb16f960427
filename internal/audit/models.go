package audit

import (
	"encoding/json"
	"time"

	id "famledger/pkg/domain"
)

// Action names recorded on audit entries. Danger-action lifecycle actions are
// emitted by the workflow; the remaining actions are written by other parts
// of the application sharing the same trail.
const (
	ActionDangerCreated  = "danger_action_created"
	ActionDangerApproved = "danger_action_approved"
	ActionDangerRejected = "danger_action_rejected"
	ActionDangerExecuted = "danger_action_executed"

	ActionSettingsUpdated      = "settings_updated"
	ActionProofApproved        = "proof_approved"
	ActionContributionRecorded = "contribution_recorded"
	ActionMemberRoleChanged    = "member_role_changed"
)

// EntityType values for the loose entity reference. Not a foreign key: an
// entry must outlive whatever it describes.
const (
	EntityDangerAction = "danger_action"
	EntitySettings     = "settings"
	EntityProof        = "proof"
	EntityContribution = "contribution"
	EntityMember       = "member"
)

// Entry is one append-only audit record. Before/After are opaque snapshots
// captured by the caller at the moment of mutation; the trail never
// re-derives them, and the diff is computed on read so formatting can evolve
// without rewriting history.
type Entry struct {
	ID         id.AuditEntryID
	FamilyID   id.FamilyID
	EntityType string
	EntityID   string
	Action     string
	ActorID    id.UserID
	ActorRole  string

	BeforeState json.RawMessage
	AfterState  json.RawMessage

	Severity       Severity
	AffectsMoney   bool
	AffectsStreaks bool
	AffectsRules   bool
	HumanSummary   string

	Reason     string
	IPAddress  string
	DeviceInfo string
	RequestID  string
	CreatedAt  time.Time
}
