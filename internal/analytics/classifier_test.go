package analytics

import (
	"math"
	"testing"
)

func TestClassifier_Deterministic(t *testing.T) {
	a := NewClassifier()
	b := NewClassifier()

	ca, cb := a.Centroids(), b.Centroids()
	if len(ca) != clusterCount || len(cb) != clusterCount {
		t.Fatalf("got %d and %d centroids, want %d", len(ca), len(cb), clusterCount)
	}
	for i := range ca {
		if ca[i] != cb[i] {
			t.Errorf("centroid %d differs between builds: %+v vs %+v", i, ca[i], cb[i])
		}
	}

	fv := FeatureVector{SavingsRatio: 0.2, MeanAmount: 180, AmountStdDev: 150}
	first := a.Classify(fv)
	for i := 0; i < 10; i++ {
		if got := b.Classify(fv); got != first {
			t.Fatalf("Classify() = %v on run %d, want %v", got, i, first)
		}
	}
}

func TestClassifier_CentroidOrdering(t *testing.T) {
	centroids := DefaultClassifier().Centroids()

	want := []Archetype{ConservativeSaver, BalancedPlanner, AggressiveSpender}
	for i, c := range centroids {
		if c.Archetype != want[i] {
			t.Errorf("centroid %d archetype = %v, want %v", i, c.Archetype, want[i])
		}
	}
	for i := 1; i < len(centroids); i++ {
		if centroids[i].Features.SavingsRatio >= centroids[i-1].Features.SavingsRatio {
			t.Errorf("centroid savings ratios not descending: %+v", centroids)
		}
	}
	if r := centroids[0].Features.SavingsRatio; r <= 0.3 {
		t.Errorf("conservative centroid ratio = %v, want > 0.3", r)
	}
	if r := centroids[2].Features.SavingsRatio; r >= 0.05 {
		t.Errorf("aggressive centroid ratio = %v, want < 0.05", r)
	}
}

func TestClassifier_Classify(t *testing.T) {
	c := DefaultClassifier()

	tests := []struct {
		name string
		fv   FeatureVector
		want Archetype
	}{
		{
			name: "high saver with small purchases",
			fv:   FeatureVector{SavingsRatio: 0.6, MeanAmount: 50, AmountStdDev: 30},
			want: ConservativeSaver,
		},
		{
			name: "middle of the road",
			fv:   FeatureVector{SavingsRatio: 0.15, MeanAmount: 250, AmountStdDev: 220},
			want: BalancedPlanner,
		},
		{
			name: "overspending with large purchases",
			fv:   FeatureVector{SavingsRatio: -0.5, MeanAmount: 2000, AmountStdDev: 3000},
			want: AggressiveSpender,
		},
		{
			name: "deficit spender with small purchases",
			fv:   FeatureVector{SavingsRatio: -0.5, MeanAmount: 62, AmountStdDev: 40},
			want: AggressiveSpender,
		},
		{
			name: "ninety percent saver with large purchases",
			fv:   FeatureVector{SavingsRatio: 0.9, MeanAmount: 550, AmountStdDev: 400},
			want: ConservativeSaver,
		},
		{
			name: "eighty percent saver with large purchases",
			fv:   FeatureVector{SavingsRatio: 0.8, MeanAmount: 514, AmountStdDev: 450},
			want: ConservativeSaver,
		},
		{
			name: "planner with small purchases",
			fv:   FeatureVector{SavingsRatio: 0.15, MeanAmount: 60, AmountStdDev: 40},
			want: BalancedPlanner,
		},
		{
			name: "income 1000 and one 600 expense",
			fv:   FeatureVector{SavingsRatio: 0.4, MeanAmount: 800, AmountStdDev: 282.84},
			want: ConservativeSaver,
		},
		{
			name: "single transaction has zero spread",
			fv:   FeatureVector{SavingsRatio: 1, MeanAmount: 100, AmountStdDev: 0},
			want: ConservativeSaver,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.fv); got != tt.want {
				t.Errorf("Classify(%+v) = %v, want %v", tt.fv, got, tt.want)
			}
		})
	}
}

func TestClassifier_NonFiniteInput(t *testing.T) {
	c := DefaultClassifier()
	got := c.Classify(FeatureVector{SavingsRatio: math.NaN(), MeanAmount: math.Inf(1), AmountStdDev: -1})

	valid := map[Archetype]bool{ConservativeSaver: true, BalancedPlanner: true, AggressiveSpender: true}
	if !valid[got] {
		t.Errorf("Classify() = %q, want a known archetype", got)
	}
}

func TestKMeans_SeparatesObviousClusters(t *testing.T) {
	ps := []point{
		{0, 0, 0}, {0.1, 0, 0}, {0, 0.1, 0},
		{10, 10, 10}, {10.1, 10, 10}, {10, 10.1, 10},
	}
	centroids := kmeans(ps, 2)
	if len(centroids) != 2 {
		t.Fatalf("got %d centroids, want 2", len(centroids))
	}
	near := func(p point, want float64) bool {
		return math.Abs(p[0]-want) < 0.5 && math.Abs(p[1]-want) < 0.5 && math.Abs(p[2]-want) < 0.5
	}
	if !(near(centroids[0], 0) && near(centroids[1], 10)) && !(near(centroids[0], 10) && near(centroids[1], 0)) {
		t.Errorf("unexpected centroids %v", centroids)
	}
}
