package video

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
)

// FramePattern names the files of a PNG sequence, in ffmpeg's image2 syntax.
const FramePattern = "frame_%04d.png"

// PNGSequence writes numbered frames into a directory.
type PNGSequence struct {
	Dir string
	enc png.Encoder
}

func NewPNGSequence(dir string) (*PNGSequence, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &PNGSequence{
		Dir: dir,
		enc: png.Encoder{CompressionLevel: png.BestSpeed},
	}, nil
}

// Path of frame i. ffmpeg's image2 demuxer starts counting at 0.
func (s *PNGSequence) Path(i int) string {
	return filepath.Join(s.Dir, fmt.Sprintf(FramePattern, i))
}

func (s *PNGSequence) WriteFrame(i int, img image.Image) error {
	f, err := os.Create(s.Path(i))
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := s.enc.Encode(w, img); err != nil {
		f.Close()
		return fmt.Errorf("png frame %d: %w", i, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SequenceEncoder dumps every frame to PNG first and encodes the sequence
// from disk afterwards. Slower than piping, but the frames stay inspectable.
type SequenceEncoder struct {
	FFmpeg *FFmpegEncoder
	Dir    string // kept after encoding; empty uses a temp dir that is removed
}

func (e *SequenceEncoder) Encode(ctx context.Context, frames FrameSource, params Params) error {
	dir := e.Dir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "lava2video-frames-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	seq, err := NewPNGSequence(dir)
	if err != nil {
		return err
	}

	count := 0
	if err := frames(ctx, func(i int, img *image.NRGBA) error {
		count++
		return seq.WriteFrame(i, img)
	}); err != nil {
		return err
	}
	if count == 0 {
		return ErrNoFrames
	}

	fmt.Printf("[*] Кадры сохранены в %s (%d шт.), кодирование...\n", dir, count)

	ff := e.FFmpeg
	if ff == nil {
		ff = &FFmpegEncoder{}
	}
	cmd := exec.CommandContext(ctx, ff.binary(), sequenceArgs(dir, params)...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg error: %w, output: %s", err, out.String())
	}
	return nil
}

func sequenceArgs(dir string, params Params) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-framerate", formatFPS(params.FPS),
		"-i", filepath.Join(dir, FramePattern),
	}
	return append(args, outputArgs(params)...)
}
