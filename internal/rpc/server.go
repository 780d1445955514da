// Package rpc exposes the workflow engine over gRPC. The service is
// missionctl.v1.Engine; every method is unary and carries google.protobuf.Struct
// in both directions, so clients need no generated stubs.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/ankittk/missionctl/internal/store"
	"github.com/ankittk/missionctl/internal/workflow"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "missionctl.v1.Engine"

// EngineServer is implemented by *Server; it is the HandlerType of the service.
type EngineServer interface {
	Call(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error)
}

// Server dispatches gRPC calls to a workflow engine.
type Server struct {
	Engine *workflow.Engine
}

type method func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error)

var methods = map[string]method{
	"CreateWorkspace": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		var req struct {
			Name        string  `json:"name"`
			Description *string `json:"description"`
		}
		if err := decode(in, &req); err != nil {
			return nil, err
		}
		id, err := eng.CreateWorkspace(ctx, req.Name, req.Description)
		return idResult(id), err
	},
	"ListWorkspaces": func(ctx context.Context, eng *workflow.Engine, _ *structpb.Struct) (any, error) {
		list, err := eng.ListWorkspaces(ctx)
		return items(list), err
	},
	"GetWorkspace": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		return eng.GetWorkspace(ctx, str(in, "id"))
	},
	"UpdateWorkspace": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		var req struct {
			ID          string  `json:"id"`
			Name        *string `json:"name"`
			Description *string `json:"description"`
		}
		if err := decode(in, &req); err != nil {
			return nil, err
		}
		return okResult(eng.UpdateWorkspace(ctx, req.ID, workflow.WorkspaceUpdate{Name: req.Name, Description: req.Description}))
	},
	"DeleteWorkspace": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		return okResult(eng.DeleteWorkspace(ctx, str(in, "id")))
	},
	"CreateAgent": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		var req struct {
			WorkspaceID string  `json:"workspace_id"`
			Name        string  `json:"name"`
			Role        string  `json:"role"`
			Description *string `json:"description"`
			AvatarEmoji string  `json:"avatar_emoji"`
			IsMaster    bool    `json:"is_master"`
			SessionKey  string  `json:"session_key"`
		}
		if err := decode(in, &req); err != nil {
			return nil, err
		}
		id, err := eng.CreateAgent(ctx, workflow.NewAgent(req))
		return idResult(id), err
	},
	"ListAgents": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		list, err := eng.ListAgents(ctx, str(in, "workspace_id"))
		return items(list), err
	},
	"GetAgent": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		return eng.GetAgent(ctx, str(in, "id"))
	},
	"UpdateAgentStatus": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		return okResult(eng.UpdateAgentStatus(ctx, str(in, "agent_id"), str(in, "status")))
	},
	"Heartbeat": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		return okResult(eng.Heartbeat(ctx, str(in, "agent_id")))
	},
	"CreateTask": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		var req struct {
			WorkspaceID string     `json:"workspace_id"`
			Title       string     `json:"title"`
			Description *string    `json:"description"`
			Priority    string     `json:"priority"`
			AssigneeIDs []string   `json:"assignee_ids"`
			DueDate     *time.Time `json:"due_date"`
		}
		if err := decode(in, &req); err != nil {
			return nil, err
		}
		id, err := eng.CreateTask(ctx, workflow.NewTask(req))
		return idResult(id), err
	},
	"GetTask": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		return eng.GetTask(ctx, str(in, "id"))
	},
	"ListTasks": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		var f struct {
			WorkspaceID string `json:"workspace_id"`
			Status      string `json:"status"`
			AssigneeID  string `json:"assignee_id"`
			Limit       int    `json:"limit"`
		}
		if err := decode(in, &f); err != nil {
			return nil, err
		}
		list, err := eng.ListTasks(ctx, store.TaskFilter(f))
		return items(list), err
	},
	"UpdateTaskStatus": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		return okResult(eng.UpdateTaskStatus(ctx, str(in, "task_id"), str(in, "status")))
	},
	"ApproveTaskPlanning": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		return okResult(eng.ApproveTaskPlanning(ctx, str(in, "task_id")))
	},
	"AssignTask": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		var req struct {
			TaskID   string   `json:"task_id"`
			AgentIDs []string `json:"agent_ids"`
		}
		if err := decode(in, &req); err != nil {
			return nil, err
		}
		return okResult(eng.AssignTask(ctx, req.TaskID, req.AgentIDs))
	},
	"GetTaskConversation": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		return eng.GetTaskConversation(ctx, str(in, "task_id"))
	},
	"PostMessage": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		var req struct {
			Ref           string   `json:"ref"`
			SenderAgentID *string  `json:"sender_agent_id"`
			Content       string   `json:"content"`
			Attachments   []string `json:"attachments"`
		}
		if err := decode(in, &req); err != nil {
			return nil, err
		}
		id, err := eng.PostMessage(ctx, workflow.NewMessage(req))
		return idResult(id), err
	},
	"ListMessages": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		list, err := eng.ListMessages(ctx, str(in, "ref"))
		return items(list), err
	},
	"ListActivities": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		var f struct {
			WorkspaceID string `json:"workspace_id"`
			Type        string `json:"type"`
			TaskID      string `json:"task_id"`
			Limit       int    `json:"limit"`
		}
		if err := decode(in, &f); err != nil {
			return nil, err
		}
		list, err := eng.ListActivities(ctx, store.ActivityFilter(f))
		return items(list), err
	},
	"ListNotifications": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		all := false
		if v, ok := in.GetFields()["all"]; ok {
			all = v.GetBoolValue()
		}
		list, err := eng.ListNotifications(ctx, str(in, "agent_id"), all)
		return items(list), err
	},
	"MarkDelivered": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		return okResult(eng.MarkDelivered(ctx, str(in, "id")))
	},
	"CreateDocument": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		var req struct {
			WorkspaceID string  `json:"workspace_id"`
			TaskID      *string `json:"task_id"`
			CreatedBy   string  `json:"created_by"`
			Title       string  `json:"title"`
			Content     string  `json:"content"`
			Type        string  `json:"type"`
		}
		if err := decode(in, &req); err != nil {
			return nil, err
		}
		id, err := eng.CreateDocument(ctx, workflow.NewDocument(req))
		return idResult(id), err
	},
	"ListDocuments": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		list, err := eng.ListDocuments(ctx, store.DocumentFilter{
			WorkspaceID: str(in, "workspace_id"),
			TaskID:      str(in, "task_id"),
		})
		return items(list), err
	},
	"Search": func(ctx context.Context, eng *workflow.Engine, in *structpb.Struct) (any, error) {
		limit := 0
		if v, ok := in.GetFields()["limit"]; ok {
			limit = int(v.GetNumberValue())
		}
		list, err := eng.Search(ctx, str(in, "workspace_id"), str(in, "query"), limit)
		return items(list), err
	},
}

// Methods returns the service's method names, sorted.
func Methods() []string {
	out := make([]string, 0, len(methods))
	for name := range methods {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Call runs one engine operation and converts the outcome for the wire.
func (s *Server) Call(ctx context.Context, name string, in *structpb.Struct) (*structpb.Struct, error) {
	m, ok := methods[name]
	if !ok {
		return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", name)
	}
	if in == nil {
		in = &structpb.Struct{}
	}
	res, err := m(ctx, s.Engine, in)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := encode(res)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus maps engine errors onto gRPC codes.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, workflow.ErrInvalid):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, workflow.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// ServiceDesc describes missionctl.v1.Engine for grpc.Server.RegisterService.
func ServiceDesc() *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*EngineServer)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "missionctl/v1/engine",
	}
	for _, name := range Methods() {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    unaryHandler(name),
		})
	}
	return desc
}

func unaryHandler(name string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		call := func(ctx context.Context, req any) (any, error) {
			return srv.(EngineServer).Call(ctx, name, req.(*structpb.Struct))
		}
		if interceptor == nil {
			return call(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
		return interceptor(ctx, in, info, call)
	}
}

// Register adds the engine service to s.
func Register(s *grpc.Server, eng *workflow.Engine) {
	s.RegisterService(ServiceDesc(), &Server{Engine: eng})
}

// NewServer returns a gRPC server with the engine service and a logging interceptor.
func NewServer(eng *workflow.Engine, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(logInterceptor(logger)))
	s := grpc.NewServer(opts...)
	Register(s, eng)
	return s
}

func logInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("rpc",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds())
		return resp, err
	}
}

// --- conversions ---

func str(in *structpb.Struct, key string) string {
	if v, ok := in.GetFields()[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

// decode copies a Struct into v through its JSON form.
func decode(in *structpb.Struct, v any) error {
	b, err := json.Marshal(in.AsMap())
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if err := json.Unmarshal(b, v); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

// encode converts a result into a Struct through its JSON form.
func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func idResult(id string) map[string]any {
	return map[string]any{"id": id}
}

func okResult(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func items[T any](list []T) map[string]any {
	if list == nil {
		list = []T{}
	}
	return map[string]any{"items": list}
}
