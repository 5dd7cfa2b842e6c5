package effects

import (
	"strings"
	"testing"

	"github.com/ivlev/lava2video/internal/config"
)

func TestDefaultEffect(t *testing.T) {
	e := &DefaultEffect{}

	tests := []struct {
		name    string
		params  config.SegmentParams
		want    []string
		notWant []string
		size    [2]int
	}{
		{
			name:    "even size passes through",
			params:  config.SegmentParams{Width: 640, Height: 360},
			want:    []string{"format=yuv420p"},
			notWant: []string{"pad=", "scale="},
			size:    [2]int{640, 360},
		},
		{
			name:   "odd size is padded",
			params: config.SegmentParams{Width: 101, Height: 51},
			want:   []string{"pad=102:52", "format=yuv420p"},
			size:   [2]int{102, 52},
		},
		{
			name:   "scaled",
			params: config.SegmentParams{Width: 512, Height: 512, OutWidth: 1280, OutHeight: 720},
			want:   []string{"scale=1280:720", "pad=1280:720"},
			size:   [2]int{1280, 720},
		},
		{
			name:   "alpha kept",
			params: config.SegmentParams{Width: 16, Height: 16, KeepAlpha: true},
			want:   []string{"format=yuva420p"},
			size:   [2]int{16, 16},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := e.GenerateFilter(tt.params)
			for _, s := range tt.want {
				if !strings.Contains(filter, s) {
					t.Errorf("filter %q should contain %q", filter, s)
				}
			}
			for _, s := range tt.notWant {
				if strings.Contains(filter, s) {
					t.Errorf("filter %q should not contain %q", filter, s)
				}
			}
			if w, h := OutputSize(tt.params); w != tt.size[0] || h != tt.size[1] {
				t.Errorf("OutputSize = %dx%d, want %v", w, h, tt.size)
			}
			t.Logf("Generated filter: %s", filter)
		})
	}
}
