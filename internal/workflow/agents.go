package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/ankittk/missionctl/internal/store"
	"github.com/ankittk/missionctl/pkg/models"
)

// NewAgent is the input to CreateAgent.
type NewAgent struct {
	WorkspaceID string
	Name        string
	Role        string
	Description *string
	AvatarEmoji string
	IsMaster    bool
	SessionKey  string
}

// CreateAgent registers an agent in a workspace with the profile's default status.
func (e *Engine) CreateAgent(ctx context.Context, in NewAgent) (string, error) {
	name := in.Name
	if strings.TrimSpace(name) == "" {
		return "", invalidf("agent name is required")
	}
	if strings.TrimSpace(in.Role) == "" {
		return "", invalidf("agent role is required")
	}
	p := e.profile()
	now := e.now()
	id := store.NewID()
	var ev *Event
	err := e.write(ctx, func(st store.Store) error {
		ws, err := st.GetWorkspace(ctx, in.WorkspaceID)
		if err != nil {
			return err
		}
		if ws == nil {
			return e.notFound("workspace", in.WorkspaceID)
		}
		if _, err := st.InsertAgent(ctx, store.Agent{
			ID:          id,
			WorkspaceID: in.WorkspaceID,
			Name:        name,
			Role:        in.Role,
			Description: in.Description,
			AvatarEmoji: in.AvatarEmoji,
			Status:      p.DefaultAgentStatus,
			IsMaster:    in.IsMaster,
			SessionKey:  in.SessionKey,
			CreatedAt:   now,
			UpdatedAt:   now,
		}); err != nil {
			return err
		}
		a, err := e.appendActivity(ctx, st, store.Activity{
			WorkspaceID: &in.WorkspaceID,
			AgentID:     &id,
			Type:        models.ActivityAgentCreated,
			Message:     fmt.Sprintf("%s joined as %s", name, in.Role),
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		ev = eventFor(a, nil)
		return nil
	})
	if err != nil {
		return "", err
	}
	if ev == nil {
		return "", nil
	}
	e.committed(ctx, ev)
	return id, nil
}

// ListAgents returns the agents of a workspace in creation order.
func (e *Engine) ListAgents(ctx context.Context, workspaceID string) ([]store.Agent, error) {
	return e.Store.ListAgents(ctx, workspaceID)
}

// GetAgent returns the agent or ErrNotFound.
func (e *Engine) GetAgent(ctx context.Context, id string) (*store.Agent, error) {
	a, err := e.Store.GetAgent(ctx, id)
	if err != nil || a != nil {
		return a, err
	}
	return nil, e.notFound("agent", id)
}

// UpdateAgentStatus sets an agent's status and logs agent_status_changed.
func (e *Engine) UpdateAgentStatus(ctx context.Context, agentID, status string) error {
	p := e.profile()
	if !p.validAgentStatus(status) {
		return invalidf("agent status %q not in %v", status, p.AgentStatuses)
	}
	now := e.now()
	var ev *Event
	err := e.write(ctx, func(st store.Store) error {
		ag, err := st.GetAgent(ctx, agentID)
		if err != nil {
			return err
		}
		if ag == nil {
			return e.notFound("agent", agentID)
		}
		if err := st.PatchAgent(ctx, agentID, store.AgentPatch{Status: &status, UpdatedAt: now}); err != nil {
			return err
		}
		a, err := e.appendActivity(ctx, st, store.Activity{
			WorkspaceID: &ag.WorkspaceID,
			AgentID:     &ag.ID,
			Type:        models.ActivityAgentStatusChanged,
			Message:     fmt.Sprintf("%s status changed to: %s", ag.Name, status),
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		ev = eventFor(a, nil)
		return nil
	})
	if err != nil {
		return err
	}
	e.committed(ctx, ev)
	return nil
}

// Heartbeat records that an agent checked in: last_heartbeat becomes now and the
// status is forced to the profile's live value. A missing agent writes nothing.
func (e *Engine) Heartbeat(ctx context.Context, agentID string) error {
	p := e.profile()
	now := e.now()
	var ev *Event
	err := e.write(ctx, func(st store.Store) error {
		ag, err := st.GetAgent(ctx, agentID)
		if err != nil {
			return err
		}
		if ag == nil {
			return e.notFound("agent", agentID)
		}
		if err := st.PatchAgent(ctx, agentID, store.AgentPatch{
			Status:        ptr(p.LiveAgentStatus),
			LastHeartbeat: &now,
			UpdatedAt:     now,
		}); err != nil {
			return err
		}
		a, err := e.appendActivity(ctx, st, store.Activity{
			WorkspaceID: &ag.WorkspaceID,
			AgentID:     &ag.ID,
			Type:        p.HeartbeatActivity,
			Message:     ag.Name + " checked in",
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		ev = eventFor(a, nil)
		return nil
	})
	if err != nil {
		return err
	}
	e.committed(ctx, ev)
	return nil
}
