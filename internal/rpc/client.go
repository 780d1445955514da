package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ankittk/missionctl/pkg/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a missionctl.v1.Engine server.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to target (e.g. "localhost:3549"). Without options the
// connection is insecure.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// Call invokes method with args and decodes the response into out (if non-nil).
func (c *Client) Call(ctx context.Context, method string, args map[string]any, out any) error {
	in, err := structpb.NewStruct(args)
	if err != nil {
		return fmt.Errorf("encode %s args: %w", method, err)
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	b, err := json.Marshal(resp.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// CallRaw invokes method and returns the response as a plain map.
func (c *Client) CallRaw(ctx context.Context, method string, args map[string]any) (map[string]any, error) {
	out := map[string]any{}
	if err := c.Call(ctx, method, args, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type idResponse struct {
	ID string `json:"id"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func (c *Client) CreateWorkspace(ctx context.Context, name string) (string, error) {
	var out idResponse
	err := c.Call(ctx, "CreateWorkspace", map[string]any{"name": name}, &out)
	return out.ID, err
}

func (c *Client) CreateAgent(ctx context.Context, workspaceID, name, role string) (string, error) {
	var out idResponse
	err := c.Call(ctx, "CreateAgent", map[string]any{"workspace_id": workspaceID, "name": name, "role": role}, &out)
	return out.ID, err
}

func (c *Client) CreateTask(ctx context.Context, workspaceID, title string) (string, error) {
	var out idResponse
	err := c.Call(ctx, "CreateTask", map[string]any{"workspace_id": workspaceID, "title": title}, &out)
	return out.ID, err
}

func (c *Client) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var out models.Task
	if err := c.Call(ctx, "GetTask", map[string]any{"id": id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListTasks(ctx context.Context, workspaceID, status string) ([]models.Task, error) {
	var out listResponse[models.Task]
	err := c.Call(ctx, "ListTasks", map[string]any{"workspace_id": workspaceID, "status": status}, &out)
	return out.Items, err
}

func (c *Client) AssignTask(ctx context.Context, taskID string, agentIDs ...string) error {
	ids := make([]any, len(agentIDs))
	for i, id := range agentIDs {
		ids[i] = id
	}
	return c.Call(ctx, "AssignTask", map[string]any{"task_id": taskID, "agent_ids": ids}, nil)
}

func (c *Client) PostMessage(ctx context.Context, ref, senderAgentID, content string) (string, error) {
	args := map[string]any{"ref": ref, "content": content}
	if senderAgentID != "" {
		args["sender_agent_id"] = senderAgentID
	}
	var out idResponse
	err := c.Call(ctx, "PostMessage", args, &out)
	return out.ID, err
}

func (c *Client) ListNotifications(ctx context.Context, agentID string, all bool) ([]models.Notification, error) {
	var out listResponse[models.Notification]
	err := c.Call(ctx, "ListNotifications", map[string]any{"agent_id": agentID, "all": all}, &out)
	return out.Items, err
}

func (c *Client) MarkDelivered(ctx context.Context, id string) error {
	return c.Call(ctx, "MarkDelivered", map[string]any{"id": id}, nil)
}

func (c *Client) ListActivities(ctx context.Context, workspaceID string, limit int) ([]models.Activity, error) {
	var out listResponse[models.Activity]
	err := c.Call(ctx, "ListActivities", map[string]any{"workspace_id": workspaceID, "limit": limit}, &out)
	return out.Items, err
}
