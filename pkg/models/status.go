package models

// Task statuses. The rich profile uses planning..done; the simple profile
// uses inbox..done plus blocked.
const (
	StatusPlanning   = "planning"
	StatusInbox      = "inbox"
	StatusAssigned   = "assigned"
	StatusInProgress = "in_progress"
	StatusTesting    = "testing"
	StatusReview     = "review"
	StatusDone       = "done"
	StatusBlocked    = "blocked"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Agent statuses (rich profile).
const (
	AgentStandby = "standby"
	AgentWorking = "working"
	AgentOffline = "offline"
)

// Agent statuses (simple profile).
const (
	AgentIdle    = "idle"
	AgentActive  = "active"
	AgentBlocked = "blocked"
)

// Activity types.
const (
	ActivityWorkspaceCreated   = "workspace_created"
	ActivityWorkspaceUpdated   = "workspace_updated"
	ActivityWorkspaceDeleted   = "workspace_deleted"
	ActivityAgentCreated       = "agent_created"
	ActivityAgentStatusChanged = "agent_status_changed"
	ActivityAgentHeartbeat     = "agent_heartbeat"
	ActivityTaskCreated        = "task_created"
	ActivityTaskAssigned       = "task_assigned"
	ActivityTaskStatusChanged  = "task_status_changed"
	ActivityMessageSent        = "message_sent"
	ActivityDocumentCreated    = "document_created"
)

// Conversation types.
const (
	ConversationDirect = "direct"
	ConversationGroup  = "group"
	ConversationTask   = "task"
)

// Message types.
const (
	MessageText   = "text"
	MessageSystem = "system"
)

// Document types.
const (
	DocumentDeliverable = "deliverable"
	DocumentResearch    = "research"
	DocumentProtocol    = "protocol"
	DocumentNotes       = "notes"
)

// Default limits.
const (
	DefaultMaxRequestBodyBytes = 1 << 20 // 1 MiB
	DefaultActivityListLimit   = 100
	MaxActivityListLimit       = 1000
	DefaultSearchLimit         = 5
	MentionSnippetRunes        = 100
	DefaultSSEChannelBuffer    = 256
)

// DefaultWorkspaceSlug marks the workspace that can never be deleted.
const DefaultWorkspaceSlug = "default"

// ActivityTypes lists every activity type the engine emits.
var ActivityTypes = []string{
	ActivityWorkspaceCreated,
	ActivityWorkspaceUpdated,
	ActivityWorkspaceDeleted,
	ActivityAgentCreated,
	ActivityAgentStatusChanged,
	ActivityAgentHeartbeat,
	ActivityTaskCreated,
	ActivityTaskAssigned,
	ActivityTaskStatusChanged,
	ActivityMessageSent,
	ActivityDocumentCreated,
}

// Priorities lists the accepted task priorities.
var Priorities = []string{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}

// DocumentTypes lists the accepted document types.
var DocumentTypes = []string{DocumentDeliverable, DocumentResearch, DocumentProtocol, DocumentNotes}

// Contains reports whether v is one of set.
func Contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
