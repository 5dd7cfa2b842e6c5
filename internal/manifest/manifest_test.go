package manifest

import (
	"errors"
	"image"
	"strings"
	"testing"
)

const twoImages = `{
  "version": "v1",
  "fps": 24,
  "cellSize": 8,
  "images": [{"url": "a.png"}, {"url": "b.png"}],
  "frames": [
    {"type": "key", "imageIndex": 0},
    {"type": "diff", "diffs": [[1, 0, 1, 1, 3], [0, 2, 2, 1, 0]]},
    {"type": "diff", "diffs": []}
  ]
}`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(twoImages))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if m.Version != 1 || m.FPS != 24 || m.CellSize != 8 {
		t.Errorf("unexpected header: version=%d fps=%v cell=%d", m.Version, m.FPS, m.CellSize)
	}
	if len(m.Images) != 2 || m.Images[1].URL != "b.png" {
		t.Errorf("unexpected images: %+v", m.Images)
	}
	if len(m.Frames) != 3 {
		t.Fatalf("Expected 3 frames, got %d", len(m.Frames))
	}

	if k, ok := m.Frames[0].(KeyFrame); !ok || k.ImageIndex != 0 {
		t.Errorf("frame 0: expected key frame of image 0, got %#v", m.Frames[0])
	}

	d, ok := m.Frames[1].(DiffFrame)
	if !ok {
		t.Fatalf("frame 1: expected diff frame, got %T", m.Frames[1])
	}
	want := []TileCopy{
		{SourceImage: 1, SourceTile: 0, Width: 1, Height: 1, DestTile: 3},
		{SourceImage: 0, SourceTile: 2, Width: 2, Height: 1, DestTile: 0},
	}
	got := d.Copies()
	if len(got) != len(want) {
		t.Fatalf("Expected %d copies, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("copy %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}

	if d, ok := m.Frames[2].(DiffFrame); !ok || d.Len() != 0 {
		t.Errorf("frame 2: expected empty diff frame, got %#v", m.Frames[2])
	}

	keys, diffs := m.FrameCounts()
	if keys != 1 || diffs != 2 {
		t.Errorf("FrameCounts: got %d keys, %d diffs", keys, diffs)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		version string
		want    int
		wantErr bool
	}{
		{`"v1"`, 1, false},
		{`1`, 1, false},
		{`null`, 0, false},
		{`"v2"`, 0, true},
		{`2`, 0, true},
		{`true`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			doc := `{"version": ` + tt.version + `, "fps": 30, "cellSize": 4, "images": [{"url": "a.png"}], "frames": []}`
			m, err := Parse([]byte(doc))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedManifest) {
					t.Fatalf("Expected ErrMalformedManifest, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if m.Version != tt.want {
				t.Errorf("Expected version %d, got %d", tt.want, m.Version)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		want  error
		frame int
		field string
	}{
		{
			name:  "cell size zero",
			doc:   `{"fps": 30, "cellSize": 0, "images": [{"url": "a.png"}], "frames": []}`,
			want:  ErrMalformedManifest,
			frame: NoFrame,
			field: "cellSize",
		},
		{
			name:  "cell size missing",
			doc:   `{"fps": 30, "images": [{"url": "a.png"}], "frames": []}`,
			want:  ErrMalformedManifest,
			frame: NoFrame,
			field: "cellSize",
		},
		{
			name:  "cell size not an integer",
			doc:   `{"fps": 30, "cellSize": "8", "images": [{"url": "a.png"}], "frames": []}`,
			want:  ErrMalformedManifest,
			frame: NoFrame,
			field: "document",
		},
		{
			name:  "fps negative",
			doc:   `{"fps": -1, "cellSize": 8, "images": [{"url": "a.png"}], "frames": []}`,
			want:  ErrMalformedManifest,
			frame: NoFrame,
			field: "fps",
		},
		{
			name:  "no images",
			doc:   `{"fps": 30, "cellSize": 8, "images": [], "frames": []}`,
			want:  ErrMalformedManifest,
			frame: NoFrame,
			field: "images",
		},
		{
			name:  "frames missing",
			doc:   `{"fps": 30, "cellSize": 8, "images": [{"url": "a.png"}]}`,
			want:  ErrMalformedManifest,
			frame: NoFrame,
			field: "frames",
		},
		{
			name:  "unknown frame kind",
			doc:   `{"fps": 30, "cellSize": 8, "images": [{"url": "a.png"}], "frames": [{"type": "key", "imageIndex": 0}, {"type": "triangle"}]}`,
			want:  ErrUnknownFrameKind,
			frame: 1,
			field: "type",
		},
		{
			name:  "unknown frame kind with foreign fields",
			doc:   `{"fps": 30, "cellSize": 8, "images": [{"url": "a.png"}], "frames": [{"type": "triangle", "imageIndex": "x", "diffs": 7}]}`,
			want:  ErrUnknownFrameKind,
			frame: 0,
			field: "type",
		},
		{
			name:  "frame type not a string",
			doc:   `{"fps": 30, "cellSize": 8, "images": [{"url": "a.png"}], "frames": [{"type": 3}]}`,
			want:  ErrMalformedManifest,
			frame: 0,
			field: "type",
		},
		{
			name:  "key image index out of range",
			doc:   `{"fps": 30, "cellSize": 8, "images": [{"url": "a.png"}, {"url": "b.png"}], "frames": [{"type": "key", "imageIndex": 99}]}`,
			want:  ErrIndexOutOfRange,
			frame: 0,
			field: "imageIndex",
		},
		{
			name:  "key without image index",
			doc:   `{"fps": 30, "cellSize": 8, "images": [{"url": "a.png"}], "frames": [{"type": "key"}]}`,
			want:  ErrMalformedManifest,
			frame: 0,
			field: "imageIndex",
		},
		{
			name:  "diff source image out of range",
			doc:   `{"fps": 30, "cellSize": 8, "images": [{"url": "a.png"}], "frames": [{"type": "diff", "diffs": [[1, 0, 1, 1, 0]]}]}`,
			want:  ErrIndexOutOfRange,
			frame: 0,
			field: "sourceImageIndex",
		},
		{
			name:  "diff zero tile count",
			doc:   `{"fps": 30, "cellSize": 8, "images": [{"url": "a.png"}], "frames": [{"type": "diff", "diffs": [[0, 0, 0, 1, 0]]}]}`,
			want:  ErrMalformedManifest,
			frame: 0,
			field: "tileCount",
		},
		{
			name:  "diff entry too short",
			doc:   `{"fps": 30, "cellSize": 8, "images": [{"url": "a.png"}], "frames": [{"type": "diff", "diffs": [[0, 1, 1, 0]]}]}`,
			want:  ErrMalformedManifest,
			frame: 0,
			field: "diffs",
		},
		{
			name:  "diff without diffs",
			doc:   `{"fps": 30, "cellSize": 8, "images": [{"url": "a.png"}], "frames": [{"type": "diff"}]}`,
			want:  ErrMalformedManifest,
			frame: 0,
			field: "diffs",
		},
		{
			name:  "frame without type",
			doc:   `{"fps": 30, "cellSize": 8, "images": [{"url": "a.png"}], "frames": [{"imageIndex": 0}]}`,
			want:  ErrMalformedManifest,
			frame: 0,
			field: "type",
		},
		{
			name:  "trailing garbage",
			doc:   `{"fps": 30, "cellSize": 8, "images": [{"url": "a.png"}], "frames": []} {}`,
			want:  ErrMalformedManifest,
			frame: NoFrame,
			field: "document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			var merr *Error
			if !errors.As(err, &merr) {
				t.Fatalf("Expected *Error, got %T", err)
			}
			if merr.Frame != tt.frame {
				t.Errorf("Expected frame %d, got %d", tt.frame, merr.Frame)
			}
			if merr.Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, merr.Field)
			}
		})
	}
}

func TestParseLegacy(t *testing.T) {
	doc := `{
	  "fps": 12,
	  "cellSize": 4,
	  "images": [{"url": "a.png"}, {"url": "b.png"}],
	  "frames": [
	    {"type": "diff", "diffs": [[0, 1, 1, 2]]},
	    {"type": "key", "imageIndex": 1},
	    {"type": "diff", "diffs": [[3, 2, 1, 0]]}
	  ]
	}`

	m, err := ParseLegacy([]byte(doc))
	if err != nil {
		t.Fatalf("ParseLegacy failed: %v", err)
	}

	first := m.Frames[0].(DiffFrame).Copies()[0]
	if first != (TileCopy{SourceImage: 0, SourceTile: 0, Width: 1, Height: 1, DestTile: 2}) {
		t.Errorf("diff before any key frame should read image 0, got %+v", first)
	}
	last := m.Frames[2].(DiffFrame).Copies()[0]
	if last != (TileCopy{SourceImage: 1, SourceTile: 3, Width: 2, Height: 1, DestTile: 0}) {
		t.Errorf("diff after key frame 1 should read image 1, got %+v", last)
	}

	// Same document is not a canonical manifest.
	if _, err := Parse([]byte(doc)); !errors.Is(err, ErrMalformedManifest) {
		t.Errorf("canonical Parse of legacy document: expected ErrMalformedManifest, got %v", err)
	}
	// And a canonical document is not a legacy one.
	if _, err := ParseLegacy([]byte(twoImages)); !errors.Is(err, ErrMalformedManifest) {
		t.Errorf("ParseLegacy of canonical document: expected ErrMalformedManifest, got %v", err)
	}
}

func TestParseSchema(t *testing.T) {
	if _, err := ParseSchema([]byte(twoImages), SchemaCanonical); err != nil {
		t.Errorf("canonical: %v", err)
	}
	if _, err := ParseSchema([]byte(twoImages), ""); err != nil {
		t.Errorf("default schema: %v", err)
	}
	if _, err := ParseSchema([]byte(twoImages), "sideways"); err == nil {
		t.Error("Expected error for unknown schema")
	}
}

func TestCheckImages(t *testing.T) {
	m, err := Parse([]byte(twoImages))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		sizes []image.Point
		want  error
	}{
		{"ok", []image.Point{{16, 16}, {32, 8}}, nil},
		{"count mismatch", []image.Point{{16, 16}}, ErrMalformedManifest},
		{"empty image", []image.Point{{16, 16}, {0, 8}}, ErrMalformedManifest},
		// image 0 is 8x8: one tile, destination tile 3 does not exist
		{"dest tile out of range", []image.Point{{8, 8}, {32, 8}}, ErrIndexOutOfRange},
		{"square second image", []image.Point{{16, 16}, {16, 16}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.CheckImages(tt.sizes)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	small, err := Parse([]byte(`{"fps": 1, "cellSize": 8, "images": [{"url": "a.png"}],
		"frames": [{"type": "diff", "diffs": [[0, 2, 1, 1, 0]]}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := small.CheckImages([]image.Point{{16, 8}}); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange for source tile 2 of a 2-tile image, got %v", err)
	}
	if err := small.CheckImages([]image.Point{{17, 8}}); err != nil {
		t.Errorf("17px wide image has 3 tiles per row, got %v", err)
	}
}

func TestCheckImagesBlockOutsideGrid(t *testing.T) {
	tests := []struct {
		name  string
		diffs string
		field string
	}{
		{"wide source block", `[[1, 0, 3, 1, 0]]`, "sourceTileIndex"},
		{"tall destination block", `[[1, 0, 1, 1, 2], [0, 0, 1, 2, 2]]`, "destTileIndex"},
		// 2^62+1 tiles: the pixel width wraps around int
		{"overflowing width", `[[1, 0, 4611686018427387905, 1, 0]]`, "sourceTileIndex"},
		{"overflowing height", `[[1, 0, 1, 4611686018427387905, 0]]`, "sourceTileIndex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(`{"fps": 1, "cellSize": 4, "images": [{"url": "a.png"}, {"url": "b.png"}],
				"frames": [{"type": "diff", "diffs": ` + tt.diffs + `}]}`))
			if err != nil {
				t.Fatal(err)
			}
			err = m.CheckImages([]image.Point{{8, 8}, {8, 8}})
			if !errors.Is(err, ErrTileOutOfBounds) {
				t.Fatalf("Expected ErrTileOutOfBounds, got %v", err)
			}
			var merr *Error
			if !errors.As(err, &merr) || merr.Field != tt.field {
				t.Errorf("Expected field %s, got %v", tt.field, err)
			}
		})
	}
}

func TestCheckImagesDeclaredSize(t *testing.T) {
	m, err := Parse([]byte(`{"fps": 1, "cellSize": 8, "width": 16, "height": 16,
		"images": [{"url": "a.png"}], "frames": []}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.CheckImages([]image.Point{{16, 16}}); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	err = m.CheckImages([]image.Point{{16, 24}})
	if !errors.Is(err, ErrMalformedManifest) || !strings.Contains(err.Error(), "height") {
		t.Errorf("Expected height mismatch, got %v", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	m, err := Parse([]byte(twoImages))
	if err != nil {
		t.Fatal(err)
	}
	raw, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	back, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse of encoded manifest failed: %v\n%s", err, raw)
	}
	if len(back.Frames) != len(m.Frames) || back.Version != 1 {
		t.Fatalf("round trip lost data:\n%s", raw)
	}
	orig := m.Frames[1].(DiffFrame).Copies()
	got := back.Frames[1].(DiffFrame).Copies()
	for i := range orig {
		if orig[i] != got[i] {
			t.Errorf("copy %d changed: %+v -> %+v", i, orig[i], got[i])
		}
	}
}

func TestDiffFrameKeepsOrder(t *testing.T) {
	a := TileCopy{SourceImage: 0, SourceTile: 0, Width: 1, Height: 1, DestTile: 0}
	b := TileCopy{SourceImage: 1, SourceTile: 0, Width: 1, Height: 1, DestTile: 0}

	src := []TileCopy{a, b}
	d := NewDiffFrame(src...)
	src[0], src[1] = b, a

	got := d.Copies()
	if got[0] != a || got[1] != b {
		t.Errorf("DiffFrame must keep authored order independent of the caller's slice, got %+v", got)
	}

	got[0] = b
	if d.Copies()[0] != a {
		t.Error("Copies must not expose the frame's storage")
	}
}
