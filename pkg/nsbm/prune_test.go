package nsbm

import (
	"reflect"
	"testing"
)

func TestPruneLevels(t *testing.T) {
	tests := []struct {
		name    string
		raw     [][]int
		inverse bool
		want    []int
	}{
		{
			name: "single level is a no-op",
			raw:  [][]int{{0, 0, 1, 1}},
			want: nil,
		},
		{
			name: "renamed duplicate level is redundant",
			raw:  [][]int{{0, 0, 1, 1}, {5, 5, 2, 2}},
			want: []int{1},
		},
		{
			name: "coarser level is informative",
			raw:  [][]int{{0, 0, 1, 1}, {0, 0, 0, 0}},
			want: nil,
		},
		{
			name: "mixed chain flags only the duplicates",
			raw: [][]int{
				{0, 0, 1, 1, 2, 2},
				{3, 3, 7, 7, 1, 1},
				{0, 0, 0, 0, 1, 1},
				{0, 0, 0, 0, 1, 1},
			},
			want: []int{1, 3},
		},
		{
			name:    "inverse returns the informative levels",
			raw:     [][]int{{0, 0, 1, 1}, {2, 2, 3, 3}, {0, 0, 0, 0}},
			inverse: true,
			want:    []int{2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PruneLevels(RelabelLevels(tt.raw), tt.inverse)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("levels = %v, want %v", got, tt.want)
			}
		})
	}
}
