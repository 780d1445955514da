package workflow

import (
	"fmt"

	"github.com/ankittk/missionctl/pkg/models"
)

// Profile names.
const (
	ProfileRich   = "rich"
	ProfileSimple = "simple"
)

// Profile bundles the rules that differ between the workspace-scoped deployment
// (rich) and the flat single-board deployment (simple). Both share one schema.
type Profile struct {
	Name                 string
	TaskStatuses         []string
	InitialStatus        string
	MaxAssignees         int // 0 means unlimited
	ConversationOnCreate bool
	AgentStatuses        []string
	DefaultAgentStatus   string
	LiveAgentStatus      string
	HeartbeatActivity    string
}

// Rich is the default profile.
var Rich = Profile{
	Name: ProfileRich,
	TaskStatuses: []string{
		models.StatusPlanning, models.StatusInbox, models.StatusAssigned, models.StatusInProgress,
		models.StatusTesting, models.StatusReview, models.StatusDone,
	},
	InitialStatus:        models.StatusPlanning,
	MaxAssignees:         1,
	ConversationOnCreate: true,
	AgentStatuses:        []string{models.AgentStandby, models.AgentWorking, models.AgentOffline},
	DefaultAgentStatus:   models.AgentStandby,
	LiveAgentStatus:      models.AgentWorking,
	HeartbeatActivity:    models.ActivityAgentStatusChanged,
}

// Simple allows several assignees, a blocked side state, and creates task
// conversations on the first message.
var Simple = Profile{
	Name: ProfileSimple,
	TaskStatuses: []string{
		models.StatusInbox, models.StatusAssigned, models.StatusInProgress,
		models.StatusReview, models.StatusDone, models.StatusBlocked,
	},
	InitialStatus:      models.StatusInbox,
	AgentStatuses:      []string{models.AgentIdle, models.AgentActive, models.AgentBlocked},
	DefaultAgentStatus: models.AgentIdle,
	LiveAgentStatus:    models.AgentActive,
	HeartbeatActivity:  models.ActivityAgentHeartbeat,
}

// ProfileByName returns the named profile; "" selects Rich.
func ProfileByName(name string) (Profile, error) {
	switch name {
	case "", ProfileRich:
		return Rich, nil
	case ProfileSimple:
		return Simple, nil
	default:
		return Profile{}, fmt.Errorf("unknown profile %q (want %q or %q)", name, ProfileRich, ProfileSimple)
	}
}

func (p Profile) validTaskStatus(s string) bool  { return models.Contains(p.TaskStatuses, s) }
func (p Profile) validAgentStatus(s string) bool { return models.Contains(p.AgentStatuses, s) }

func (p Profile) checkAssignees(n int) error {
	if p.MaxAssignees > 0 && n > p.MaxAssignees {
		return invalidf("profile %s allows at most %d assignee(s), got %d", p.Name, p.MaxAssignees, n)
	}
	return nil
}
