package tools

import (
	"context"
	"fmt"
)

// =============================================================================
// LOCAL CLUSTER PROBE
// =============================================================================

// ClusterStatus reports whether a local Kubernetes cluster is reachable.
type ClusterStatus struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message"`
}

// ClusterProbe checks local cluster availability before plan synthesis.
type ClusterProbe interface {
	Check(ctx context.Context) ClusterStatus
}

// StubProbe always reports "not connected". A kubeconfig-aware probe
// can replace it without touching the architect.
type StubProbe struct{}

// Check implements ClusterProbe.
func (StubProbe) Check(ctx context.Context) ClusterStatus {
	return ClusterStatus{
		Connected: false,
		Message:   "Local cluster not connected",
	}
}

// RenderForLLM renders the status for prompt assembly.
func (s ClusterStatus) RenderForLLM() string {
	if s.Connected {
		return fmt.Sprintf("Local cluster available: %s", s.Message)
	}
	return fmt.Sprintf("Local cluster not available: %s", s.Message)
}
