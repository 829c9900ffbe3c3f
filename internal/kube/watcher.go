package kube

import (
	"context"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"

	"fwdctl/pkg/logging"
)

const watchSubsystem = "KubeWatch"

// watchRetryDelay spaces reconnect attempts after the API server drops a
// watch stream.
const watchRetryDelay = 2 * time.Second

// DeletionHandler receives the key of every pod the API server reports
// deleted.
type DeletionHandler func(key PodKey)

// PodWatcher follows pod lifecycle events in one namespace of one context
// and reports deletions. Additions and modifications are ignored; a forward
// only ever needs to react to its pod going away.
type PodWatcher struct {
	client    *Client
	namespace string
	handler   DeletionHandler
}

// NewPodWatcher wires a watcher for the client's context.
func NewPodWatcher(client *Client, namespace string, handler DeletionHandler) *PodWatcher {
	return &PodWatcher{client: client, namespace: namespace, handler: handler}
}

// Run blocks until ctx is cancelled, re-establishing the watch stream
// whenever it breaks. Callers run it in a goroutine next to the manager.
func (w *PodWatcher) Run(ctx context.Context) {
	for {
		if err := w.watchOnce(ctx); err != nil {
			logging.Warn(watchSubsystem, "Pod watch on %s lost: %v", w.namespace, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(watchRetryDelay):
		}
	}
}

// watchOnce consumes a single watch stream until it ends or ctx is
// cancelled. A nil return with ctx still live means the server closed the
// stream; Run reconnects.
func (w *PodWatcher) watchOnce(ctx context.Context) error {
	stream, err := w.client.clientset.CoreV1().Pods(w.namespace).Watch(ctx, metav1.ListOptions{})
	if err != nil {
		return err
	}
	defer stream.Stop()

	logging.Debug(watchSubsystem, "Watching pods in %s (context %s)", w.namespace, w.client.kubeContext)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-stream.ResultChan():
			if !ok {
				return nil
			}
			if event.Type != watch.Deleted {
				continue
			}
			pod, ok := event.Object.(*corev1.Pod)
			if !ok {
				continue
			}
			key := PodKey{
				Context:   w.client.kubeContext,
				Namespace: pod.Namespace,
				Name:      pod.Name,
			}
			logging.Info(watchSubsystem, "Pod %s deleted", key)
			w.handler(key)
		}
	}
}
