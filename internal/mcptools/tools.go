// Package mcptools exposes the forward manager to MCP clients, so agents
// and editors can open tunnels into a cluster through fwdctl.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"fwdctl/internal/forward"
	"fwdctl/internal/kube"
)

// ForwardController is the slice of the forward manager the tools drive.
// *forward.Manager satisfies it.
type ForwardController interface {
	Start(ctx context.Context, target forward.Target, desiredPort int) (forward.StartResult, error)
	Stop(ctx context.Context, id forward.SessionID) error
	StopAll(ctx context.Context) error
	Query() []forward.SessionInfo
}

// podInspector is the single kube read pod_inspect needs.
type podInspector interface {
	GetPod(ctx context.Context, namespace, name string) (kube.PodDetails, error)
}

// ForwardTools provides MCP tools for managing fwdctl port forwards.
type ForwardTools struct {
	controller ForwardController

	// newInspector builds a cluster client per call; swapped in tests.
	newInspector func(kubeContext string) (podInspector, error)
}

// NewForwardTools creates the tool set around a forward controller.
func NewForwardTools(controller ForwardController) *ForwardTools {
	return &ForwardTools{
		controller: controller,
		newInspector: func(kubeContext string) (podInspector, error) {
			return kube.NewClient(kubeContext)
		},
	}
}

// GetForwardTools returns all tool definitions.
func (ft *ForwardTools) GetForwardTools() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool("forward_start",
			mcp.WithDescription("Start a port-forward to a pod and wait until the tunnel is ready"),
			mcp.WithString("pod",
				mcp.Required(),
				mcp.Description("Pod name to forward to"),
			),
			mcp.WithNumber("remote_port",
				mcp.Required(),
				mcp.Description("Port on the pod"),
			),
			mcp.WithString("namespace",
				mcp.Description("Namespace containing the pod (default: default)"),
			),
			mcp.WithString("context",
				mcp.Description("Kubeconfig context to use (default: the active one)"),
			),
			mcp.WithNumber("local_port",
				mcp.Description("Desired local port; omit to mirror the remote port. Falls forward to a nearby port when busy."),
			),
		),
		mcp.NewTool("forward_stop",
			mcp.WithDescription("Stop a running port-forward by session id"),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("Session id as returned by forward_start or forward_list"),
			),
		),
		mcp.NewTool("forward_stop_all",
			mcp.WithDescription("Stop every running port-forward"),
		),
		mcp.NewTool("forward_list",
			mcp.WithDescription("List all running port-forwards with their state and uptime"),
		),
		mcp.NewTool("pod_inspect",
			mcp.WithDescription("Inspect a pod: phase, readiness, and declared container ports"),
			mcp.WithString("pod",
				mcp.Required(),
				mcp.Description("Pod name to inspect"),
			),
			mcp.WithString("namespace",
				mcp.Description("Namespace containing the pod (default: default)"),
			),
			mcp.WithString("context",
				mcp.Description("Kubeconfig context to use (default: the active one)"),
			),
		),
	}
}

// sessionSummary is the JSON shape sessions take in tool results.
type sessionSummary struct {
	SessionID     string `json:"session_id"`
	Context       string `json:"context,omitempty"`
	Namespace     string `json:"namespace"`
	Pod           string `json:"pod"`
	RemotePort    int    `json:"remote_port"`
	LocalPort     int    `json:"local_port"`
	RequestedPort int    `json:"requested_port"`
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func summarize(info forward.SessionInfo, now time.Time) sessionSummary {
	return sessionSummary{
		SessionID:     string(info.ID),
		Context:       info.Target.Context,
		Namespace:     info.Target.Namespace,
		Pod:           info.Target.Pod,
		RemotePort:    info.Target.RemotePort,
		LocalPort:     info.LocalPort,
		RequestedPort: info.RequestedPort,
		Status:        string(info.Status),
		UptimeSeconds: int64(info.Uptime(now).Seconds()),
	}
}

// HandleForwardStart handles the forward_start tool call
func (ft *ForwardTools) HandleForwardStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pod, err := req.RequireString("pod")
	if err != nil {
		return mcp.NewToolResultError("pod is required"), nil
	}

	args, _ := req.Params.Arguments.(map[string]interface{})
	remotePort, ok := intArg(args, "remote_port")
	if !ok || remotePort <= 0 {
		return mcp.NewToolResultError("remote_port is required"), nil
	}
	namespace := stringArg(args, "namespace")
	if namespace == "" {
		namespace = "default"
	}
	localPort, _ := intArg(args, "local_port")

	target := forward.Target{
		Context:    stringArg(args, "context"),
		Namespace:  namespace,
		Pod:        pod,
		RemotePort: remotePort,
	}

	res, err := ft.controller.Start(ctx, target, localPort)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to start forward: %v", err)), nil
	}

	result := map[string]interface{}{
		"session":      summarize(res.Session, time.Now()),
		"was_adjusted": res.Port.WasAdjusted,
	}
	if res.Port.WasAdjusted {
		result["note"] = res.Port.Reason
	}

	resultJSON, _ := json.MarshalIndent(result, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(string(resultJSON)),
		},
	}, nil
}

// HandleForwardStop handles the forward_stop tool call
func (ft *ForwardTools) HandleForwardStop(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	if err := ft.controller.Stop(ctx, forward.SessionID(sessionID)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to stop forward: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Successfully stopped forward '%s'", sessionID)), nil
}

// HandleForwardStopAll handles the forward_stop_all tool call
func (ft *ForwardTools) HandleForwardStopAll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	active := len(ft.controller.Query())

	if err := ft.controller.StopAll(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to stop all forwards: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Successfully stopped %d forward(s)", active)), nil
}

// HandleForwardList handles the forward_list tool call
func (ft *ForwardTools) HandleForwardList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions := ft.controller.Query()
	now := time.Now()

	summaries := make([]sessionSummary, 0, len(sessions))
	for _, info := range sessions {
		summaries = append(summaries, summarize(info, now))
	}

	result := map[string]interface{}{
		"forwards": summaries,
		"total":    len(summaries),
	}

	resultJSON, _ := json.MarshalIndent(result, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(string(resultJSON)),
		},
	}, nil
}

// HandlePodInspect handles the pod_inspect tool call
func (ft *ForwardTools) HandlePodInspect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pod, err := req.RequireString("pod")
	if err != nil {
		return mcp.NewToolResultError("pod is required"), nil
	}

	args, _ := req.Params.Arguments.(map[string]interface{})
	namespace := stringArg(args, "namespace")
	if namespace == "" {
		namespace = "default"
	}

	inspector, err := ft.newInspector(stringArg(args, "context"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to connect to cluster: %v", err)), nil
	}

	details, err := inspector.GetPod(ctx, namespace, pod)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to inspect pod: %v", err)), nil
	}

	ports := make([]map[string]interface{}, 0, len(details.ContainerPorts))
	for _, p := range details.ContainerPorts {
		ports = append(ports, map[string]interface{}{
			"name":      p.Name,
			"container": p.ContainerName,
			"port":      p.Port,
		})
	}

	result := map[string]interface{}{
		"name":            details.Name,
		"namespace":       details.Namespace,
		"phase":           details.Phase,
		"ready":           details.Ready,
		"running":         details.Running(),
		"container_ports": ports,
	}

	resultJSON, _ := json.MarshalIndent(result, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(string(resultJSON)),
		},
	}, nil
}

// stringArg reads an optional string argument, returning "" when absent.
func stringArg(args map[string]interface{}, key string) string {
	if args == nil {
		return ""
	}
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// intArg reads an optional numeric argument. JSON numbers arrive as float64.
func intArg(args map[string]interface{}, key string) (int, bool) {
	if args == nil {
		return 0, false
	}
	if v, ok := args[key].(float64); ok {
		return int(v), true
	}
	return 0, false
}
