package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fwdctl/internal/forward"
	"fwdctl/internal/kube"
	"fwdctl/internal/portalloc"
)

type startCall struct {
	target  forward.Target
	desired int
}

type fakeController struct {
	startCalls  []startCall
	startResult forward.StartResult
	startErr    error

	stopIDs []forward.SessionID
	stopErr error

	stopAllCalls int
	stopAllErr   error

	sessions []forward.SessionInfo
}

func (f *fakeController) Start(ctx context.Context, target forward.Target, desiredPort int) (forward.StartResult, error) {
	f.startCalls = append(f.startCalls, startCall{target: target, desired: desiredPort})
	if f.startErr != nil {
		return forward.StartResult{}, f.startErr
	}
	return f.startResult, nil
}

func (f *fakeController) Stop(ctx context.Context, id forward.SessionID) error {
	f.stopIDs = append(f.stopIDs, id)
	return f.stopErr
}

func (f *fakeController) StopAll(ctx context.Context) error {
	f.stopAllCalls++
	return f.stopAllErr
}

func (f *fakeController) Query() []forward.SessionInfo {
	return f.sessions
}

type fakeInspector struct {
	details kube.PodDetails
	err     error
}

func (f fakeInspector) GetPod(ctx context.Context, namespace, name string) (kube.PodDetails, error) {
	return f.details, f.err
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func textPayload(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	content, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "Expected TextContent")
	return content.Text
}

func TestGetForwardTools(t *testing.T) {
	ft := NewForwardTools(&fakeController{})
	tools := ft.GetForwardTools()

	assert.Len(t, tools, 5)

	toolNames := make(map[string]bool)
	for _, tool := range tools {
		toolNames[tool.Name] = true
	}
	assert.True(t, toolNames["forward_start"])
	assert.True(t, toolNames["forward_stop"])
	assert.True(t, toolNames["forward_stop_all"])
	assert.True(t, toolNames["forward_list"])
	assert.True(t, toolNames["pod_inspect"])
}

func TestHandleForwardStart(t *testing.T) {
	target := forward.Target{Context: "prod", Namespace: "web", Pod: "nginx", RemotePort: 80}
	fc := &fakeController{
		startResult: forward.StartResult{
			Session: forward.SessionInfo{
				ID:            forward.SessionID("s1"),
				Target:        target,
				LocalPort:     8081,
				RequestedPort: 8080,
				Status:        forward.StatusConnected,
				StartedAt:     time.Now(),
			},
			Port: portalloc.Result{Port: 8081, WasAdjusted: true, Reason: "port 8080 is busy, using 8081 instead"},
		},
	}
	ft := NewForwardTools(fc)

	req := callRequest("forward_start", map[string]interface{}{
		"pod":         "nginx",
		"remote_port": float64(80),
		"namespace":   "web",
		"context":     "prod",
		"local_port":  float64(8080),
	})
	result, err := ft.HandleForwardStart(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)

	require.Len(t, fc.startCalls, 1)
	assert.Equal(t, target, fc.startCalls[0].target)
	assert.Equal(t, 8080, fc.startCalls[0].desired)

	var payload struct {
		Session     sessionSummary `json:"session"`
		WasAdjusted bool           `json:"was_adjusted"`
		Note        string         `json:"note"`
	}
	require.NoError(t, json.Unmarshal([]byte(textPayload(t, result)), &payload))
	assert.Equal(t, "s1", payload.Session.SessionID)
	assert.Equal(t, 8081, payload.Session.LocalPort)
	assert.Equal(t, 8080, payload.Session.RequestedPort)
	assert.True(t, payload.WasAdjusted)
	assert.Contains(t, payload.Note, "8081")
}

func TestHandleForwardStart_MissingPod(t *testing.T) {
	ft := NewForwardTools(&fakeController{})

	result, err := ft.HandleForwardStart(context.Background(), callRequest("forward_start", map[string]interface{}{
		"remote_port": float64(80),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleForwardStart_MissingRemotePort(t *testing.T) {
	ft := NewForwardTools(&fakeController{})

	result, err := ft.HandleForwardStart(context.Background(), callRequest("forward_start", map[string]interface{}{
		"pod": "nginx",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleForwardStart_Defaults(t *testing.T) {
	fc := &fakeController{}
	ft := NewForwardTools(fc)

	result, err := ft.HandleForwardStart(context.Background(), callRequest("forward_start", map[string]interface{}{
		"pod":         "nginx",
		"remote_port": float64(80),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	require.Len(t, fc.startCalls, 1)
	call := fc.startCalls[0]
	assert.Equal(t, "default", call.target.Namespace)
	assert.Empty(t, call.target.Context)
	assert.Zero(t, call.desired, "absent local_port must pass through as 0")
}

func TestHandleForwardStart_ControllerError(t *testing.T) {
	fc := &fakeController{startErr: errors.New("no free local port")}
	ft := NewForwardTools(fc)

	result, err := ft.HandleForwardStart(context.Background(), callRequest("forward_start", map[string]interface{}{
		"pod":         "nginx",
		"remote_port": float64(80),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textPayload(t, result), "no free local port")
}

func TestHandleForwardStop(t *testing.T) {
	fc := &fakeController{}
	ft := NewForwardTools(fc)

	result, err := ft.HandleForwardStop(context.Background(), callRequest("forward_stop", map[string]interface{}{
		"session_id": "s1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	assert.Equal(t, []forward.SessionID{"s1"}, fc.stopIDs)
	assert.Contains(t, textPayload(t, result), "s1")
}

func TestHandleForwardStop_MissingID(t *testing.T) {
	ft := NewForwardTools(&fakeController{})

	result, err := ft.HandleForwardStop(context.Background(), callRequest("forward_stop", map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleForwardStopAll(t *testing.T) {
	fc := &fakeController{
		sessions: []forward.SessionInfo{
			{ID: "a"}, {ID: "b"},
		},
	}
	ft := NewForwardTools(fc)

	result, err := ft.HandleForwardStopAll(context.Background(), callRequest("forward_stop_all", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	assert.Equal(t, 1, fc.stopAllCalls)
	assert.Contains(t, textPayload(t, result), "2 forward(s)")
}

func TestHandleForwardList(t *testing.T) {
	started := time.Now().Add(-90 * time.Second)
	fc := &fakeController{
		sessions: []forward.SessionInfo{
			{
				ID:            "s1",
				Target:        forward.Target{Namespace: "default", Pod: "api", RemotePort: 8080},
				LocalPort:     8080,
				RequestedPort: 8080,
				Status:        forward.StatusConnected,
				StartedAt:     started,
			},
			{
				ID:            "s2",
				Target:        forward.Target{Namespace: "default", Pod: "db", RemotePort: 5432},
				LocalPort:     5433,
				RequestedPort: 5432,
				Status:        forward.StatusConnecting,
			},
		},
	}
	ft := NewForwardTools(fc)

	result, err := ft.HandleForwardList(context.Background(), callRequest("forward_list", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload struct {
		Forwards []sessionSummary `json:"forwards"`
		Total    int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(textPayload(t, result)), &payload))
	assert.Equal(t, 2, payload.Total)
	require.Len(t, payload.Forwards, 2)
	assert.GreaterOrEqual(t, payload.Forwards[0].UptimeSeconds, int64(89))
	assert.Equal(t, "Connected", payload.Forwards[0].Status)
	assert.Zero(t, payload.Forwards[1].UptimeSeconds, "a connecting session has no uptime")
}

func TestHandlePodInspect(t *testing.T) {
	ft := NewForwardTools(&fakeController{})
	ft.newInspector = func(kubeContext string) (podInspector, error) {
		assert.Equal(t, "prod", kubeContext)
		return fakeInspector{details: kube.PodDetails{
			Name:      "nginx",
			Namespace: "web",
			Phase:     "Running",
			Ready:     true,
			ContainerPorts: []kube.ContainerPort{
				{Name: "http", ContainerName: "nginx", Port: 80},
			},
		}}, nil
	}

	result, err := ft.HandlePodInspect(context.Background(), callRequest("pod_inspect", map[string]interface{}{
		"pod":       "nginx",
		"namespace": "web",
		"context":   "prod",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload struct {
		Name    string `json:"name"`
		Phase   string `json:"phase"`
		Running bool   `json:"running"`
		Ports   []struct {
			Name string `json:"name"`
			Port int    `json:"port"`
		} `json:"container_ports"`
	}
	require.NoError(t, json.Unmarshal([]byte(textPayload(t, result)), &payload))
	assert.Equal(t, "nginx", payload.Name)
	assert.True(t, payload.Running)
	require.Len(t, payload.Ports, 1)
	assert.Equal(t, 80, payload.Ports[0].Port)
}

func TestHandlePodInspect_ClusterUnreachable(t *testing.T) {
	ft := NewForwardTools(&fakeController{})
	ft.newInspector = func(string) (podInspector, error) {
		return nil, errors.New("no kubeconfig")
	}

	result, err := ft.HandlePodInspect(context.Background(), callRequest("pod_inspect", map[string]interface{}{
		"pod": "nginx",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textPayload(t, result), "no kubeconfig")
}
