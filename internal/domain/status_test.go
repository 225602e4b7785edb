package domain

import "testing"

func TestDeriveKpiStatus(t *testing.T) {
	cases := []struct {
		name      string
		actual    float64
		target    float64
		threshold float64
		want      KpiStatus
	}{
		{"meets target", 100, 100, 0.7, KpiStatusOnTrack},
		{"exceeds target", 150, 100, 0.7, KpiStatusOnTrack},
		{"just above threshold", 72, 100, 0.7, KpiStatusAtRisk},
		{"exactly at threshold", 70, 100, 0.7, KpiStatusAtRisk},
		{"just below threshold", 69, 100, 0.7, KpiStatusOffTrack},
		{"zero actual", 0, 100, 0.7, KpiStatusOffTrack},
		{"custom threshold", 80, 100, 0.9, KpiStatusOffTrack},
		{"zero target non-negative actual", 5, 0, 0.7, KpiStatusOnTrack},
		{"zero target zero actual", 0, 0, 0.7, KpiStatusOnTrack},
		{"zero target negative actual", -1, 0, 0.7, KpiStatusOffTrack},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveKpiStatus(tc.actual, tc.target, tc.threshold)
			if got != tc.want {
				t.Fatalf("DeriveKpiStatus(%v, %v, %v) = %q, want %q",
					tc.actual, tc.target, tc.threshold, got, tc.want)
			}
		})
	}
}

func TestIsAssigned(t *testing.T) {
	kpi := KPI{AssignedUserIDs: []string{"u1", "u2"}}
	if !kpi.IsAssigned("u2") {
		t.Fatal("expected u2 to be assigned")
	}
	if kpi.IsAssigned("u3") {
		t.Fatal("expected u3 not to be assigned")
	}
}
