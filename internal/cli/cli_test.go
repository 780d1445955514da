package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/ankittk/missionctl/pkg/models"
)

func TestNewRootCmd_hasSubcommands(t *testing.T) {
	root := NewRootCmd("test")
	if root == nil {
		t.Fatal("NewRootCmd returned nil")
	}
	cmds := root.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}
	for _, want := range []string{"start", "stop", "status", "workspace", "agent", "task", "message", "activity", "notification", "document", "search", "rpc", "mcp", "apikey", "daemon"} {
		if !names[want] {
			t.Errorf("expected subcommand %q", want)
		}
	}
}

func TestNewRootCmd_versionFlag(t *testing.T) {
	root := NewRootCmd("1.2.3")
	if root.Version != "1.2.3" {
		t.Errorf("Version: got %q", root.Version)
	}
}

func TestNewRootCmd_hasHomeFlag(t *testing.T) {
	root := NewRootCmd("")
	if root.PersistentFlags().Lookup("home") == nil {
		t.Fatal("expected --home persistent flag")
	}
	if root.PersistentFlags().Lookup("json") == nil {
		t.Fatal("expected --json persistent flag")
	}
}

func TestDaemonCmd_acceptsBackgroundFlags(t *testing.T) {
	root := NewRootCmd("")
	d, _, err := root.Find([]string{"daemon"})
	if err != nil {
		t.Fatalf("find daemon: %v", err)
	}
	for _, name := range []string{"port", "host", "rpc-addr", "pprof", "profile", "seed", "otel", "log-format"} {
		if d.Flags().Lookup(name) == nil {
			t.Errorf("daemon missing --%s", name)
		}
	}
}

func TestStartCmd_flags(t *testing.T) {
	root := NewRootCmd("")
	start, _, err := root.Find([]string{"start"})
	if err != nil {
		t.Fatalf("find start: %v", err)
	}
	for _, name := range []string{"foreground", "env-file", "port", "rpc-addr"} {
		if start.Flags().Lookup(name) == nil {
			t.Errorf("start missing --%s", name)
		}
	}
	// The API serves JSON only, so start has nothing to open in a browser.
	if start.Flags().Lookup("no-browser") != nil {
		t.Error("start still has --no-browser")
	}
}

func TestApikeyGenerate(t *testing.T) {
	root := NewRootCmd("")
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"apikey", "generate"})
	if err := root.Execute(); err != nil {
		t.Fatalf("apikey generate: %v", err)
	}
	out := buf.String()
	hexKey := regexp.MustCompile(`(?m)^  ([a-f0-9]{64})$`)
	if !hexKey.MatchString(out) {
		t.Errorf("output should contain a 64-char hex key on its own line; got:\n%s", out)
	}
	if !strings.Contains(out, "MISSIONCTL_AUTH_PASSWORD") {
		t.Errorf("output should mention MISSIONCTL_AUTH_PASSWORD")
	}
	if !strings.Contains(out, "X-API-Key") {
		t.Errorf("output should mention X-API-Key")
	}
}

// run executes the CLI against home and returns stdout.
func run(t *testing.T, home string, args ...string) string {
	t.Helper()
	out, err := runErr(home, args...)
	if err != nil {
		t.Fatalf("missionctl %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func runErr(home string, args ...string) (string, error) {
	root := NewRootCmd("test")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--home", home}, args...))
	err := root.Execute()
	return out.String(), err
}

func runID(t *testing.T, home string, args ...string) string {
	t.Helper()
	var res struct {
		ID string `json:"id"`
	}
	out := run(t, home, append(args, "--json")...)
	if err := json.Unmarshal([]byte(out), &res); err != nil || res.ID == "" {
		t.Fatalf("decode id from %q: %v", out, err)
	}
	return res.ID
}

func TestCommandFlow(t *testing.T) {
	home := t.TempDir()

	ws := runID(t, home, "workspace", "add", "--name", "Squad")
	jarvis := runID(t, home, "agent", "add", "--workspace", ws, "--name", "Jarvis", "--role", "Lead", "--master")
	shuri := runID(t, home, "agent", "add", "--workspace", ws, "--name", "Shuri", "--role", "Analyst")
	task := runID(t, home, "task", "create", "--workspace", ws, "--title", "Competitor research", "--priority", "high", "--due", "2026-11-01")

	if out := run(t, home, "workspace", "list"); !strings.Contains(out, "Squad (agents=2 tasks=1)") {
		t.Fatalf("workspace list: %s", out)
	}

	run(t, home, "task", "assign", "--id", task, "--agent", shuri)
	var notes []models.Notification
	if err := json.Unmarshal([]byte(run(t, home, "notification", "list", "--agent", shuri, "--json")), &notes); err != nil {
		t.Fatalf("decode notifications: %v", err)
	}
	if len(notes) != 1 || notes[0].Content != "You've been assigned a task: Competitor research" {
		t.Fatalf("notifications: %+v", notes)
	}
	run(t, home, "notification", "deliver", "--id", notes[0].ID)
	if out := run(t, home, "notification", "list", "--agent", shuri); !strings.Contains(out, "No notifications.") {
		t.Fatalf("after deliver: %s", out)
	}

	run(t, home, "message", "post", "--to", task, "--from", shuri, "--content", "@Jarvis draft is ready")
	if out := run(t, home, "notification", "list", "--agent", jarvis); !strings.Contains(out, "@Jarvis draft is ready") {
		t.Fatalf("mention notification: %s", out)
	}
	if out := run(t, home, "message", "list", "--in", task); !strings.Contains(out, "draft is ready") {
		t.Fatalf("message list: %s", out)
	}

	run(t, home, "task", "status", "--id", task, "--status", "review")
	var shown struct {
		Status   string           `json:"status"`
		Messages []models.Message `json:"messages"`
	}
	if err := json.Unmarshal([]byte(run(t, home, "task", "show", "--id", task, "--json")), &shown); err != nil {
		t.Fatalf("decode task show: %v", err)
	}
	if shown.Status != "review" || len(shown.Messages) != 1 {
		t.Fatalf("task show: %+v", shown)
	}
	if out := run(t, home, "task", "list", "--workspace", ws, "--status", "review"); !strings.Contains(out, "Competitor research") {
		t.Fatalf("task list: %s", out)
	}

	run(t, home, "agent", "heartbeat", "--id", shuri)
	if out := run(t, home, "agent", "list", "--workspace", ws); !strings.Contains(out, "Shuri (Analyst) working") {
		t.Fatalf("agent list after heartbeat: %s", out)
	}

	var acts []models.Activity
	if err := json.Unmarshal([]byte(run(t, home, "activity", "--workspace", ws, "--type", "task_assigned", "--json")), &acts); err != nil {
		t.Fatalf("decode activity: %v", err)
	}
	if len(acts) != 1 || acts[0].Message != "Task assigned to Shuri" {
		t.Fatalf("activity: %+v", acts)
	}

	runID(t, home, "document", "add", "--workspace", ws, "--task", task, "--by", shuri, "--title", "Findings", "--content", "pricing table", "--type", "research")
	if out := run(t, home, "document", "list", "--workspace", ws, "--task", task); !strings.Contains(out, "Findings [research]") {
		t.Fatalf("document list: %s", out)
	}
	if out := run(t, home, "search", "competitor", "--workspace", ws); !strings.Contains(out, task) {
		t.Fatalf("search: %s", out)
	}
}

func TestCommandErrors(t *testing.T) {
	home := t.TempDir()
	ws := runID(t, home, "workspace", "add", "--name", "Squad")

	cases := [][]string{
		{"workspace", "add"},
		{"agent", "add", "--workspace", ws, "--name", "NoRole"},
		{"task", "create", "--workspace", "missing", "--title", "x"},
		{"task", "create", "--workspace", ws, "--title", "x", "--due", "tomorrow"},
		{"task", "status", "--id", "missing", "--status", "done"},
		{"task", "assign", "--id", "missing"},
		{"message", "post", "--to", "missing", "--content", "hi"},
		{"search", "--workspace", ws},
	}
	for _, args := range cases {
		if _, err := runErr(home, args...); err == nil {
			t.Errorf("missionctl %s: expected error", strings.Join(args, " "))
		}
	}
}

func TestWorkspaceUpdateDeleteAndApprove(t *testing.T) {
	home := t.TempDir()
	ws := runID(t, home, "workspace", "add", "--name", "Night Shift")
	run(t, home, "workspace", "update", "--id", "night-shift", "--name", "Day Shift")
	if out := run(t, home, "workspace", "list"); !strings.Contains(out, ws+"  Day Shift (agents=0 tasks=0)") {
		t.Fatalf("workspace list after update: %s", out)
	}

	task := runID(t, home, "task", "create", "--workspace", ws, "--title", "Rota")
	if out := run(t, home, "task", "approve", "--id", task); !strings.Contains(out, "inbox") {
		t.Fatalf("task approve: %s", out)
	}
	if _, err := runErr(home, "task", "approve", "--id", task); err == nil {
		t.Fatal("approve twice: expected error")
	}
	if _, err := runErr(home, "workspace", "delete", "--id", ws); err == nil {
		t.Fatal("delete workspace with a task: expected error")
	}

	scratch := runID(t, home, "workspace", "add", "--name", "Scratch")
	if out := run(t, home, "workspace", "delete", "--id", scratch); !strings.Contains(out, `Deleted workspace "Scratch"`) {
		t.Fatalf("workspace delete: %s", out)
	}
	if _, err := runErr(home, "workspace", "update", "--id", ws); err == nil {
		t.Fatal("update without fields: expected error")
	}
}

func TestSeedAndStatus(t *testing.T) {
	home := t.TempDir()
	run(t, home, "workspace", "seed")
	out := run(t, home, "workspace", "list")
	if !strings.Contains(out, "Mission Control (agents=3 tasks=1)") {
		t.Fatalf("seeded workspace: %s", out)
	}
	if out := run(t, home, "status"); !strings.Contains(out, "missionctl not running") {
		t.Fatalf("status: %s", out)
	}
	if out := run(t, home, "doctor"); !strings.Contains(out, "daemon not running") {
		t.Fatalf("doctor: %s", out)
	}
	if out := run(t, home, "rpc", "methods"); !strings.Contains(out, "CreateTask") {
		t.Fatalf("rpc methods: %s", out)
	}
}

func TestNuke(t *testing.T) {
	home := t.TempDir()
	runID(t, home, "workspace", "add", "--name", "Squad")

	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader("no\n"))
	root.SetArgs([]string{"--home", home, "nuke"})
	if err := root.Execute(); err != nil {
		t.Fatalf("nuke: %v", err)
	}
	if !strings.Contains(out.String(), "Aborted.") {
		t.Fatalf("nuke without confirmation: %s", out.String())
	}
	if out := run(t, home, "workspace", "list"); !strings.Contains(out, "Squad") {
		t.Fatalf("workspace gone after aborted nuke: %s", out)
	}

	run(t, home, "nuke", "--yes")
	if _, err := os.Stat(home); !os.IsNotExist(err) {
		t.Fatalf("home still present after nuke: %v", err)
	}
}
