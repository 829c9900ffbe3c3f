package cmd

import (
	"context"
	"fmt"
	"sync"

	"fwdctl/internal/kube"
	"fwdctl/internal/reporting"
	"fwdctl/pkg/logging"
)

const watchHubSubsystem = "WatchHub"

// podRemovalSink receives pod-deletion cleanup requests. *forward.Manager
// satisfies it.
type podRemovalSink interface {
	OnPodRemoved(contextName, namespace, pod string)
}

// watchHub keeps one pod-deletion watcher running per (context, namespace)
// pair that ever hosts a forward session. Watchers are started lazily off the
// notice stream, so every command mode (forward, ui, mcp) gets pod cleanup
// without wiring watchers by hand.
type watchHub struct {
	sink      podRemovalSink
	newClient func(kubeContext string) (*kube.Client, error)

	mu      sync.Mutex
	watched map[string]bool
}

func newWatchHub(sink podRemovalSink) *watchHub {
	return &watchHub{
		sink:      sink,
		newClient: kube.NewClient,
		watched:   make(map[string]bool),
	}
}

// run consumes the notice stream until ctx is cancelled or the subscription
// closes. Only Connecting notices matter: the first session in a namespace
// brings its watcher up.
func (h *watchHub) run(ctx context.Context, sub *reporting.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-sub.C():
			if !ok {
				return
			}
			if n.Type != reporting.NoticeForwardConnecting {
				continue
			}
			h.ensure(ctx, n.Context, n.Namespace)
		}
	}
}

// ensure starts a watcher for the pair unless one is already running. A
// failed client build logs a warning and leaves the pair unclaimed so a
// later session can retry.
func (h *watchHub) ensure(ctx context.Context, kubeContext, namespace string) {
	key := fmt.Sprintf("%s/%s", kubeContext, namespace)
	h.mu.Lock()
	if h.watched[key] {
		h.mu.Unlock()
		return
	}
	h.watched[key] = true
	h.mu.Unlock()

	client, err := h.newClient(kubeContext)
	if err != nil {
		logging.Warn(watchHubSubsystem, "Pod deletion cleanup disabled for %s: %v", key, err)
		h.mu.Lock()
		delete(h.watched, key)
		h.mu.Unlock()
		return
	}

	watcher := kube.NewPodWatcher(client, namespace, func(pod kube.PodKey) {
		h.sink.OnPodRemoved(pod.Context, pod.Namespace, pod.Name)
	})
	go watcher.Run(ctx)
	logging.Debug(watchHubSubsystem, "Started pod watcher for %s", key)
}
