package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIndices_Families(t *testing.T) {
	got := NormalizeIndices([]string{"logs", "app-2023-02-01", "app-2023-01-01"})

	assert.Equal(t, []IndexSummary{
		{IndexName: "app-2023-01-01", CleanIndexName: "app-*", TotalIndex: 1, IsIndexPattern: true},
		{IndexName: "app-2023-02-01", CleanIndexName: "app-*", TotalIndex: 2, IsIndexPattern: true},
		{IndexName: "logs", CleanIndexName: "logs", TotalIndex: 1, IsIndexPattern: false},
	}, got)
}

func TestNormalizeIndices_SkipsInternal(t *testing.T) {
	got := NormalizeIndices([]string{".kibana_1", "logs-{now/d}", "metrics-2024.01", "orders"})

	assert.Equal(t, []IndexSummary{
		{IndexName: "orders", CleanIndexName: "orders", TotalIndex: 1},
	}, got)
}

func TestNormalizeIndices_DoesNotMutateInput(t *testing.T) {
	in := []string{"b", "a"}
	NormalizeIndices(in)
	assert.Equal(t, []string{"b", "a"}, in)
}

func TestNormalizeIndices_Empty(t *testing.T) {
	assert.Empty(t, NormalizeIndices(nil))
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		rotated bool
	}{
		{"daily", "app-2023-01-01", "app-*", true},
		{"monthly underscore", "audit_2023_07", "audit-*", true},
		{"epoch millis", "events-1700000000000", "events-*", true},
		{"numeric 4-8 digits", "shard-202401", "shard-*", true},
		{"small numeric", "metrics_7", "metrics-*", true},
		{"plain", "customers", "customers", false},
		{"letter before digits", "app-v2", "app-v2", false},
		{"several suffixes collapse", "app-1-2023-01-01", "app-*", true},
		{"no prefix", "-2023", "-2023", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.rotated, IsRotated(tt.in))
			assert.Equal(t, tt.want, CleanName(tt.in))
		})
	}
}
