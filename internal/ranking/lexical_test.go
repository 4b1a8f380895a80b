package ranking

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"stack8s/internal/types"
)

func pkgNames(rs []ScoredPackage) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name
	}
	return out
}

// An exact name match outranks a prefix match no matter how popular the
// prefix-matched package is.
func TestLexicalRanker_ExactNameBeatsPrefix(t *testing.T) {
	candidates := []types.PackageRecord{
		{Name: "mlflow-operator", Description: "Operator for MLflow tracking servers", Stars: 9000},
		{Name: "mlflow", Description: "ML experiment tracking", Stars: 120},
	}

	ranked := NewLexicalRanker(15).Rank(candidates, "mlflow", 0)

	want := []string{"mlflow", "mlflow-operator"}
	if diff := cmp.Diff(want, pkgNames(ranked.Values())); diff != "" {
		t.Fatalf("ranking mismatch (-want +got):\n%s", diff)
	}
	if got := ranked.Values()[0].Tier; got != TierExactName {
		t.Fatalf("winner tier = %d, want %d", got, TierExactName)
	}
}

func TestLexicalRanker_TierPrecedence(t *testing.T) {
	candidates := []types.PackageRecord{
		{Name: "observability-suite", Description: "bundles prometheus and grafana"},
		{Name: "kube-prometheus-stack", Description: "full monitoring stack"},
		{Name: "prometheus-adapter", Description: "custom metrics adapter"},
		{Name: "prometheus", Description: "monitoring and alerting toolkit"},
	}

	ranked := NewLexicalRanker(15).Rank(candidates, "prometheus", 0)

	want := []string{"prometheus", "prometheus-adapter", "kube-prometheus-stack", "observability-suite"}
	if diff := cmp.Diff(want, pkgNames(ranked.Values())); diff != "" {
		t.Fatalf("ranking mismatch (-want +got):\n%s", diff)
	}
	tiers := make([]int, ranked.Len())
	for i, p := range ranked.Values() {
		tiers[i] = p.Tier
	}
	if diff := cmp.Diff([]int{TierExactName, TierNamePrefix, TierNameSubstr, TierDescSubstr}, tiers); diff != "" {
		t.Fatalf("tier mismatch (-want +got):\n%s", diff)
	}
}

// Within a tier, a rarer query term contributes more than a common one.
func TestLexicalRanker_DFWeighting(t *testing.T) {
	candidates := []types.PackageRecord{
		// "serving" appears in every doc, "triton" in only one.
		{Name: "a", SearchText: "model serving runtime triton"},
		{Name: "b", SearchText: "model serving runtime"},
		{Name: "c", SearchText: "generic serving tools"},
	}

	ranked := NewLexicalRanker(15).Rank(candidates, "triton serving", 0)

	if got := ranked.Values()[0].Name; got != "a" {
		t.Fatalf("top result = %q, want %q (rare term should dominate)", got, "a")
	}
	vals := ranked.Values()
	for i := 1; i < len(vals); i++ {
		if vals[i-1].Tier == vals[i].Tier && vals[i-1].Relevance < vals[i].Relevance {
			t.Fatalf("relevance order violated at %d", i)
		}
	}
}

func TestLexicalRanker_ExcludesNoSignalRecords(t *testing.T) {
	candidates := []types.PackageRecord{
		{Name: "redis", Description: "in-memory data store"},
		{Name: "cert-manager", Description: "x509 certificate management"},
	}

	ranked := NewLexicalRanker(15).Rank(candidates, "redis", 0)
	if ranked.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (no-signal record must be excluded)", ranked.Len())
	}
}

func TestLexicalRanker_StarsAndOfficialTieBreaks(t *testing.T) {
	candidates := []types.PackageRecord{
		{Name: "queue-beta", Description: "message queue", Stars: 50, Official: false},
		{Name: "queue-alpha", Description: "message queue", Stars: 50, Official: true},
		{Name: "queue-gamma", Description: "message queue", Stars: 300, Official: false},
	}

	ranked := NewLexicalRanker(15).Rank(candidates, "queue", 0)

	want := []string{"queue-gamma", "queue-alpha", "queue-beta"}
	if diff := cmp.Diff(want, pkgNames(ranked.Values())); diff != "" {
		t.Fatalf("ranking mismatch (-want +got):\n%s", diff)
	}
}

func TestLexicalRanker_Deterministic(t *testing.T) {
	candidates := []types.PackageRecord{
		{Name: "argo-workflows", Description: "workflow engine", Stars: 14000},
		{Name: "argo-cd", Description: "gitops delivery", Stars: 17000},
		{Name: "argo-events", Description: "event-driven automation", Stars: 2000},
	}
	r := NewLexicalRanker(15)

	first := pkgNames(r.Rank(candidates, "argo", 0).Values())
	second := pkgNames(r.Rank(candidates, "argo", 0).Values())
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeat ranking differs (-first +second):\n%s", diff)
	}
}
