package module

import (
	"context"

	"github.com/GoCodeAlone/remediation/alerts"
	"github.com/GoCodeAlone/remediation/kube"
)

// KubePodResolver resolves alert pods through a Kubernetes API client.
type KubePodResolver struct {
	Client *kube.Client
}

// ResolvePod implements PodResolver.
func (r KubePodResolver) ResolvePod(ctx context.Context, ref alerts.PodRef) (PodExecutor, error) {
	pod, err := r.Client.FindPod(ctx, ref)
	if err != nil {
		return nil, err
	}
	if pod == nil {
		return nil, nil
	}
	return pod, nil
}
