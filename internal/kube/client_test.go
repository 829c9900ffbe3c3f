package kube

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func runningPod(namespace, name string, ports ...int32) *corev1.Pod {
	containerPorts := make([]corev1.ContainerPort, 0, len(ports))
	for _, p := range ports {
		containerPorts = append(containerPorts, corev1.ContainerPort{ContainerPort: p})
	}
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{
				{Name: "main", Ports: containerPorts},
			},
		},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			Conditions: []corev1.PodCondition{
				{Type: corev1.PodReady, Status: corev1.ConditionTrue},
			},
		},
	}
}

func TestGetPod(t *testing.T) {
	clientset := fake.NewSimpleClientset(runningPod("default", "nginx", 80, 8443))
	client := NewClientWithClientset("test-context", clientset)

	pod, err := client.GetPod(context.Background(), "default", "nginx")
	require.NoError(t, err)

	assert.Equal(t, "nginx", pod.Name)
	assert.Equal(t, "default", pod.Namespace)
	assert.True(t, pod.Running())
	assert.True(t, pod.Ready)
	assert.True(t, pod.HasPort(80))
	assert.True(t, pod.HasPort(8443))
	assert.False(t, pod.HasPort(9999))
	require.Len(t, pod.ContainerPorts, 2)
	assert.Equal(t, "main", pod.ContainerPorts[0].ContainerName)
}

func TestGetPodNotFound(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	client := NewClientWithClientset("test-context", clientset)

	_, err := client.GetPod(context.Background(), "default", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default/ghost")
}

func TestGetPodNotRunning(t *testing.T) {
	pending := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "starting"},
		Status:     corev1.PodStatus{Phase: corev1.PodPending},
	}
	clientset := fake.NewSimpleClientset(pending)
	client := NewClientWithClientset("test-context", clientset)

	pod, err := client.GetPod(context.Background(), "default", "starting")
	require.NoError(t, err)
	assert.False(t, pod.Running())
	assert.Equal(t, "Pending", pod.Phase)
}

func TestListRunningPods(t *testing.T) {
	pending := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "pending-pod"},
		Status:     corev1.PodStatus{Phase: corev1.PodPending},
	}
	clientset := fake.NewSimpleClientset(
		runningPod("default", "api", 8080),
		runningPod("default", "web", 80),
		runningPod("other", "elsewhere", 80),
		pending,
	)
	client := NewClientWithClientset("test-context", clientset)

	pods, err := client.ListRunningPods(context.Background(), "default")
	require.NoError(t, err)
	require.Len(t, pods, 2)
	for _, p := range pods {
		assert.True(t, p.Running())
		assert.Equal(t, "default", p.Namespace)
	}
}

func TestPodKeyString(t *testing.T) {
	key := PodKey{Context: "prod", Namespace: "default", Name: "nginx"}
	assert.Equal(t, "default/nginx (context prod)", key.String())
}
