package store

import "context"

// Store is the record store the workflow engine writes through.
// Inserts return the record id (generated when the caller leaves it empty), patches
// against a missing id are no-ops, and gets return (nil, nil) when the record is absent.
// Implementations: the SQL store in this package (modernc or mattn SQLite) and *postgres.Store.
type Store interface {
	// Workspaces
	InsertWorkspace(ctx context.Context, w Workspace) (string, error)
	GetWorkspace(ctx context.Context, id string) (*Workspace, error)
	GetWorkspaceBySlug(ctx context.Context, slug string) (*Workspace, error)
	ListWorkspaces(ctx context.Context) ([]Workspace, error)
	PatchWorkspace(ctx context.Context, id string, p WorkspacePatch) error
	// DeleteWorkspace removes the workspace and its documents. Activities are kept.
	DeleteWorkspace(ctx context.Context, id string) error

	// Agents
	InsertAgent(ctx context.Context, a Agent) (string, error)
	GetAgent(ctx context.Context, id string) (*Agent, error)
	ListAgents(ctx context.Context, workspaceID string) ([]Agent, error)
	FindAgentsByName(ctx context.Context, workspaceID, name string) ([]Agent, error)
	PatchAgent(ctx context.Context, id string, p AgentPatch) error

	// Tasks
	InsertTask(ctx context.Context, t Task) (string, error)
	GetTask(ctx context.Context, id string) (*Task, error)
	ListTasks(ctx context.Context, f TaskFilter) ([]Task, error)
	PatchTask(ctx context.Context, id string, p TaskPatch) error

	// Conversations
	InsertConversation(ctx context.Context, c Conversation) (string, error)
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	GetConversationByTask(ctx context.Context, taskID string) (*Conversation, error)

	// Messages
	InsertMessage(ctx context.Context, m Message) (string, error)
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)

	// Activities (append-only)
	InsertActivity(ctx context.Context, a Activity) (string, error)
	ListActivities(ctx context.Context, f ActivityFilter) ([]Activity, error)

	// Notifications
	InsertNotification(ctx context.Context, n Notification) (string, error)
	GetNotification(ctx context.Context, id string) (*Notification, error)
	ListNotifications(ctx context.Context, f NotificationFilter) ([]Notification, error)
	MarkNotificationDelivered(ctx context.Context, id string) error

	// Documents
	InsertDocument(ctx context.Context, d Document) (string, error)
	ListDocuments(ctx context.Context, f DocumentFilter) ([]Document, error)

	// WithTx runs fn against a transactional view of the store. fn's writes commit
	// together when it returns nil and roll back otherwise. Nested calls reuse the
	// outer transaction.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}
