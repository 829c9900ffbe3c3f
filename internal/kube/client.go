package kube

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	_ "k8s.io/client-go/plugin/pkg/client/auth" // Important for various auth providers
	"k8s.io/client-go/tools/clientcmd"
)

// apiTimeout bounds individual API calls so a dead cluster cannot hang a
// command.
const apiTimeout = 15 * time.Second

// PodKey identifies one pod within one kubeconfig context.
type PodKey struct {
	Context   string
	Namespace string
	Name      string
}

func (k PodKey) String() string {
	return fmt.Sprintf("%s/%s (context %s)", k.Namespace, k.Name, k.Context)
}

// ContainerPort is one port a pod's container declares.
type ContainerPort struct {
	Name          string
	ContainerName string
	Port          int
}

// PodDetails is a read-time snapshot of the pod fields fwdctl cares about.
type PodDetails struct {
	Name           string
	Namespace      string
	Phase          string
	Ready          bool
	ContainerPorts []ContainerPort
}

// Running reports whether the pod is in the Running phase. Forwards to pods
// in any other phase are rejected before a process is spawned.
func (d PodDetails) Running() bool {
	return d.Phase == string(corev1.PodRunning)
}

// HasPort reports whether any container declares the given port. Pods may
// legitimately serve on undeclared ports, so callers treat a false result as
// a warning, not an error.
func (d PodDetails) HasPort(port int) bool {
	for _, p := range d.ContainerPorts {
		if p.Port == port {
			return true
		}
	}
	return false
}

// NewClientsetForContext builds a clientset for the named kubeconfig context,
// or the active context when the name is empty.
var NewClientsetForContext = func(kubeContext string) (kubernetes.Interface, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	configOverrides := &clientcmd.ConfigOverrides{}
	if kubeContext != "" {
		configOverrides.CurrentContext = kubeContext
	}
	kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, configOverrides)

	restConfig, err := kubeConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get REST config for context %q: %w", kubeContext, err)
	}
	restConfig.Timeout = apiTimeout

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes clientset for context %q: %w", kubeContext, err)
	}
	return clientset, nil
}

// GetCurrentKubeContext retrieves the name of the currently active Kubernetes
// context.
var GetCurrentKubeContext = func() (string, error) {
	pathOptions := clientcmd.NewDefaultPathOptions()
	if pathOptions == nil {
		return "", fmt.Errorf("failed to get default kubeconfig path options")
	}
	config, err := pathOptions.GetStartingConfig()
	if err != nil {
		return "", fmt.Errorf("failed to get starting kubeconfig: %w", err)
	}
	if config.CurrentContext == "" {
		return "", fmt.Errorf("current kubeconfig context is not set")
	}
	return config.CurrentContext, nil
}

// Client exposes the pod reads fwdctl performs against one context.
type Client struct {
	kubeContext string
	clientset   kubernetes.Interface
}

// NewClient connects to the named kubeconfig context.
func NewClient(kubeContext string) (*Client, error) {
	clientset, err := NewClientsetForContext(kubeContext)
	if err != nil {
		return nil, err
	}
	return &Client{kubeContext: kubeContext, clientset: clientset}, nil
}

// NewClientWithClientset wraps an existing clientset. Used by tests with a
// fake clientset.
func NewClientWithClientset(kubeContext string, clientset kubernetes.Interface) *Client {
	return &Client{kubeContext: kubeContext, clientset: clientset}
}

// Context returns the kubeconfig context this client talks to.
func (c *Client) Context() string {
	return c.kubeContext
}

// GetPod fetches one pod and condenses it into PodDetails.
func (c *Client) GetPod(ctx context.Context, namespace, name string) (PodDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	pod, err := c.clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return PodDetails{}, fmt.Errorf("failed to get pod %s/%s: %w", namespace, name, err)
	}
	return podDetails(pod), nil
}

// ListRunningPods lists the pods in a namespace that are in the Running
// phase, the candidates worth offering as forward targets.
func (c *Client) ListRunningPods(ctx context.Context, namespace string) ([]PodDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	podList, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods in %s: %w", namespace, err)
	}

	var out []PodDetails
	for i := range podList.Items {
		d := podDetails(&podList.Items[i])
		if d.Running() {
			out = append(out, d)
		}
	}
	return out, nil
}

func podDetails(pod *corev1.Pod) PodDetails {
	d := PodDetails{
		Name:      pod.Name,
		Namespace: pod.Namespace,
		Phase:     string(pod.Status.Phase),
	}
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady && cond.Status == corev1.ConditionTrue {
			d.Ready = true
			break
		}
	}
	for _, container := range pod.Spec.Containers {
		for _, port := range container.Ports {
			d.ContainerPorts = append(d.ContainerPorts, ContainerPort{
				Name:          port.Name,
				ContainerName: container.Name,
				Port:          int(port.ContainerPort),
			})
		}
	}
	return d
}
