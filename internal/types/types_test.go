package types

import (
	"testing"
)

func TestRanked_ItemsAssignsRanks(t *testing.T) {
	r := NewRanked([]string{"a", "b", "c"})

	items := r.Items()
	if len(items) != 3 {
		t.Fatalf("len(Items()) = %d, want 3", len(items))
	}
	for i, item := range items {
		if item.Rank != i+1 {
			t.Fatalf("Items()[%d].Rank = %d, want %d", i, item.Rank, i+1)
		}
	}
}

func TestRanked_Truncate(t *testing.T) {
	r := NewRanked([]int{1, 2, 3, 4, 5})

	if got := r.Truncate(3).Len(); got != 3 {
		t.Fatalf("Truncate(3).Len() = %d, want 3", got)
	}
	if got := r.Truncate(10).Len(); got != 5 {
		t.Fatalf("Truncate(10).Len() = %d, want 5", got)
	}
	if got := r.Truncate(-1).Len(); got != 5 {
		t.Fatalf("Truncate(-1).Len() = %d, want 5", got)
	}
	if got := r.Truncate(0).Len(); got != 0 {
		t.Fatalf("Truncate(0).Len() = %d, want 0", got)
	}
}

func TestNormalizeConfidence(t *testing.T) {
	cases := []struct {
		in   string
		want Confidence
	}{
		{"low", ConfidenceLow},
		{"medium", ConfidenceMedium},
		{"high", ConfidenceHigh},
		{"", ConfidenceLow},
		{"HIGH", ConfidenceLow},
		{"certain", ConfidenceLow},
	}
	for _, tc := range cases {
		if got := NormalizeConfidence(tc.in); got != tc.want {
			t.Fatalf("NormalizeConfidence(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWorkloadSpec_CriticalFieldsSet(t *testing.T) {
	gpu := true

	full := WorkloadSpec{TaskType: "inference", Domain: "NLP", GPUNeeded: &gpu}
	if !full.CriticalFieldsSet() {
		t.Fatalf("CriticalFieldsSet() = false, want true")
	}

	missing := []WorkloadSpec{
		{Domain: "NLP", GPUNeeded: &gpu},
		{TaskType: "inference", GPUNeeded: &gpu},
		{TaskType: "inference", Domain: "NLP"},
		{},
	}
	for i, s := range missing {
		if s.CriticalFieldsSet() {
			t.Fatalf("case %d: CriticalFieldsSet() = true, want false", i)
		}
	}
}

func TestComputeRecord_TotalVRAMGB(t *testing.T) {
	r := ComputeRecord{GPUCount: 4, VRAMPerGPUGB: 80}
	if got := r.TotalVRAMGB(); got != 320 {
		t.Fatalf("TotalVRAMGB() = %d, want 320", got)
	}

	cpu := ComputeRecord{}
	if got := cpu.TotalVRAMGB(); got != 0 {
		t.Fatalf("TotalVRAMGB() = %d, want 0 for CPU instance", got)
	}
}
