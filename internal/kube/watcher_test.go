package kube

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

// newWatcherFixture wires a PodWatcher to a fake clientset whose watch
// stream is driven by the returned FakeWatcher.
func newWatcherFixture(t *testing.T, namespace string) (*watch.FakeWatcher, <-chan PodKey, context.CancelFunc) {
	t.Helper()

	clientset := fake.NewSimpleClientset()
	fakeWatch := watch.NewFake()
	clientset.PrependWatchReactor("pods", k8stesting.DefaultWatchReactor(fakeWatch, nil))

	deleted := make(chan PodKey, 8)
	w := NewPodWatcher(NewClientWithClientset("test-context", clientset), namespace, func(key PodKey) {
		deleted <- key
	})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		fakeWatch.Stop()
		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	return fakeWatch, deleted, cancel
}

func TestPodWatcherReportsDeletions(t *testing.T) {
	fakeWatch, deleted, _ := newWatcherFixture(t, "default")

	fakeWatch.Delete(&corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "nginx"},
	})

	select {
	case key := <-deleted:
		assert.Equal(t, PodKey{Context: "test-context", Namespace: "default", Name: "nginx"}, key)
	case <-time.After(5 * time.Second):
		t.Fatal("deletion was not reported")
	}
}

func TestPodWatcherIgnoresOtherEvents(t *testing.T) {
	fakeWatch, deleted, _ := newWatcherFixture(t, "default")

	pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "api"}}
	fakeWatch.Add(pod)
	fakeWatch.Modify(pod)
	fakeWatch.Delete(pod)

	// Only the deletion comes through, proving the earlier events were
	// consumed and discarded.
	select {
	case key := <-deleted:
		assert.Equal(t, "api", key.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("deletion was not reported")
	}
	select {
	case key := <-deleted:
		t.Fatalf("unexpected extra notification: %v", key)
	default:
	}
}

func TestPodWatcherStopsOnCancel(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	fakeWatch := watch.NewFake()
	defer fakeWatch.Stop()
	clientset.PrependWatchReactor("pods", k8stesting.DefaultWatchReactor(fakeWatch, nil))

	w := NewPodWatcher(NewClientWithClientset("test-context", clientset), "default", func(PodKey) {
		t.Error("handler must not fire without a deletion")
	})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		w.Run(ctx)
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}
