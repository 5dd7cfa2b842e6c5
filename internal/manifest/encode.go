package manifest

import (
	"encoding/json"
	"fmt"
)

// Encode writes the manifest in the canonical wire layout.
func (m *Manifest) Encode() ([]byte, error) {
	fps, cell := m.FPS, m.CellSize
	w := wireManifest{
		FPS:           &fps,
		CellSize:      &cell,
		DiffImageSize: m.DiffImageSize,
		Width:         m.Width,
		Height:        m.Height,
		Density:       m.Density,
		Alpha:         m.Alpha,
		Images:        make([]wireImage, len(m.Images)),
		Frames:        make([]json.RawMessage, 0, len(m.Frames)),
	}
	if m.Version == 1 {
		w.Version = json.RawMessage(`"v1"`)
	}
	for i, img := range m.Images {
		w.Images[i] = wireImage{URL: img.URL}
	}

	for i, f := range m.Frames {
		var wf wireFrame
		switch f := f.(type) {
		case KeyFrame:
			t, idx := string(KindKey), f.ImageIndex
			wf = wireFrame{Type: &t, ImageIndex: &idx}
		case DiffFrame:
			t := string(KindDiff)
			diffs := make([][]int, len(f.copies))
			for j, c := range f.copies {
				diffs[j] = []int{c.SourceImage, c.SourceTile, c.Width, c.Height, c.DestTile}
			}
			wf = wireFrame{Type: &t, Diffs: &diffs}
		default:
			return nil, fmt.Errorf("frame %d: unsupported frame type %T", i, f)
		}
		raw, err := json.Marshal(wf)
		if err != nil {
			return nil, err
		}
		w.Frames = append(w.Frames, raw)
	}

	return json.MarshalIndent(w, "", "  ")
}
