// Package kube is fwdctl's thin layer over client-go.
//
// It covers exactly the cluster interactions the forward lifecycle needs:
// resolving kubeconfig contexts, reading pod details before a forward is
// started, and watching for pod deletions so active forwards can be torn
// down. The forwarding traffic itself never passes through this package;
// that is the spawned kubectl process's job.
//
// # Core Components
//
// Client: a per-context wrapper around a kubernetes.Interface providing the
// pod reads fwdctl needs (GetPod, ListRunningPods).
//
// PodWatcher: follows one namespace's pod lifecycle events and invokes a
// handler for every deletion, reconnecting if the API server drops the
// stream.
//
// # Testing
//
// NewClientsetForContext and GetCurrentKubeContext are package variables so
// tests can substitute fake clientsets and fixed context names without a
// kubeconfig on disk.
//
// # Usage Example
//
//	client, err := kube.NewClient("prod-cluster")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pod, err := client.GetPod(ctx, "default", "nginx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !pod.Running() {
//	    log.Fatalf("pod %s is %s", pod.Name, pod.Phase)
//	}
package kube
