package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: every
	// registry change and every movement of custody. Written fail-closed in
	// the same transaction as the state change.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers access control changes and rejected operations.
	// These feed monitoring and alerting and are written asynchronously.
	CategorySecurity EventCategory = "security"
)

// Event is the transport-agnostic audit record persisted by stores.
type Event struct {
	Category     EventCategory
	Timestamp    time.Time
	Action       string
	Subject      string // rule set, jurisdiction, envelope or agreement id
	ActorID      string // party that performed the action
	Counterparty string // other party affected, if any
	Amount       uint64
	Decision     string
	Reason       string
	RequestID    string
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

type AuditEvent string

const (
	// Policy registry
	EventRuleSetRegistered      AuditEvent = "rule_set_registered"
	EventRuleSetDeactivated     AuditEvent = "rule_set_deactivated"
	EventJurisdictionConfigured AuditEvent = "jurisdiction_configured"
	EventJurisdictionToggled    AuditEvent = "jurisdiction_toggled"

	// Envelope
	EventTokenWrapped                AuditEvent = "token_wrapped"
	EventTokenUnwrapped              AuditEvent = "token_unwrapped"
	EventTokenTransferred            AuditEvent = "token_transferred"
	EventFXConversionApplied         AuditEvent = "fx_conversion_applied"
	EventCrossBorderPaymentInitiated AuditEvent = "cross_border_payment_initiated"
	EventExemptionChanged            AuditEvent = "exemption_changed"
	EventComplianceToggled           AuditEvent = "compliance_toggled"
	EventEnvelopeConfigured          AuditEvent = "envelope_configured"
	EventTransferRejected            AuditEvent = "transfer_rejected"

	// Repo
	EventRepoInitiated  AuditEvent = "repo_initiated"
	EventRepoFunded     AuditEvent = "repo_funded"
	EventRepoExecuted   AuditEvent = "repo_executed"
	EventRepoSettled    AuditEvent = "repo_settled"
	EventRepoDefaulted  AuditEvent = "repo_defaulted"
	EventRepoCancelled  AuditEvent = "repo_cancelled"
	EventRepoConfigured AuditEvent = "repo_configured"

	// Access
	EventRoleGranted AuditEvent = "role_granted"
	EventRoleRevoked AuditEvent = "role_revoked"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventRoleGranted:       CategorySecurity,
	EventRoleRevoked:       CategorySecurity,
	EventTransferRejected:  CategorySecurity,
	EventExemptionChanged:  CategorySecurity,
	EventComplianceToggled: CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unlisted events are compliance events.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryCompliance
}

// ComplianceEvent captures a regulatory-significant action requiring
// guaranteed persistence. Use with the compliance publisher.
type ComplianceEvent struct {
	Timestamp    time.Time
	Action       AuditEvent
	Subject      string
	ActorID      string
	Counterparty string
	Amount       uint64
	Decision     string
	Reason       string
	RequestID    string
}

// ToEvent converts to the stored Event shape.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:     e.Action.Category(),
		Timestamp:    e.Timestamp,
		Action:       string(e.Action),
		Subject:      e.Subject,
		ActorID:      e.ActorID,
		Counterparty: e.Counterparty,
		Amount:       e.Amount,
		Decision:     e.Decision,
		Reason:       e.Reason,
		RequestID:    e.RequestID,
	}
}

// SecurityEvent captures access changes and rejected operations.
// Events are processed asynchronously with buffering.
type SecurityEvent struct {
	Timestamp time.Time
	Action    AuditEvent
	Subject   string
	ActorID   string
	Reason    string
	RequestID string
	Severity  Severity
}

// Severity levels for security events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ToEvent converts to the stored Event shape.
func (e SecurityEvent) ToEvent() Event {
	return Event{
		Category:  CategorySecurity,
		Timestamp: e.Timestamp,
		Action:    string(e.Action),
		Subject:   e.Subject,
		ActorID:   e.ActorID,
		Decision:  string(e.Severity),
		Reason:    e.Reason,
		RequestID: e.RequestID,
	}
}
