package workflow

import (
	"context"

	"github.com/ankittk/missionctl/pkg/models"
)

// SeedDemo creates a demo workspace with a lead and two specialists and one
// welcome task, unless a workspace already exists. It returns the id of the first
// workspace either way.
func (e *Engine) SeedDemo(ctx context.Context) (string, error) {
	wss, err := e.Store.ListWorkspaces(ctx)
	if err != nil {
		return "", err
	}
	if len(wss) > 0 {
		return wss[0].ID, nil
	}
	desc := "Demo squad"
	wsID, err := e.CreateWorkspace(ctx, "Mission Control", &desc)
	if err != nil {
		return "", err
	}
	crew := []NewAgent{
		{Name: "Jarvis", Role: "Squad Lead", AvatarEmoji: "🤖", IsMaster: true, SessionKey: "agent:main:main"},
		{Name: "Shuri", Role: "Product Analyst", AvatarEmoji: "🔬", SessionKey: "agent:product-analyst:main"},
		{Name: "Friday", Role: "Developer", AvatarEmoji: "🛠", SessionKey: "agent:developer:main"},
	}
	for _, a := range crew {
		a.WorkspaceID = wsID
		if _, err := e.CreateAgent(ctx, a); err != nil {
			return "", err
		}
	}
	welcome := "Say hello in the thread and mention a teammate with @Jarvis."
	if _, err := e.CreateTask(ctx, NewTask{
		WorkspaceID: wsID,
		Title:       "Welcome to Mission Control",
		Description: &welcome,
		Priority:    models.PriorityNormal,
	}); err != nil {
		return "", err
	}
	return wsID, nil
}
