package search

import (
	"testing"

	"github.com/54b3r/ragstore-go/internal/storage"
)

func TestNormalizeScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		metric storage.Metric
		raw    float64
		want   float64
	}{
		{"cosine distance zero is perfect", storage.MetricCosineDistance, 0, 1},
		{"cosine distance one is halfway", storage.MetricCosineDistance, 1, 0.5},
		{"cosine distance two is worst", storage.MetricCosineDistance, 2, 0},
		{"cosine similarity one is perfect", storage.MetricCosineSimilarity, 1, 1},
		{"cosine similarity zero is halfway", storage.MetricCosineSimilarity, 0, 0.5},
		{"cosine similarity minus one is worst", storage.MetricCosineSimilarity, -1, 0},
		{"inner product maps like similarity", storage.MetricInnerProduct, 0.5, 0.75},
		{"l2 zero is perfect", storage.MetricL2Distance, 0, 1},
		{"l2 one is halved", storage.MetricL2Distance, 1, 0.5},
		{"l2 negative treated as zero", storage.MetricL2Distance, -3, 1},
		{"unknown metric treated as distance", storage.MetricUnknown, 0.25, 0.75},
		{"clamped above", storage.MetricCosineSimilarity, 5, 1},
		{"clamped below", storage.MetricCosineDistance, 9, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NormalizeScore(tt.metric, tt.raw)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("NormalizeScore(%v, %v) = %v, want %v", tt.metric, tt.raw, got, tt.want)
			}
		})
	}
}
