package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
)

// FrameSource produces frames strictly in output order by calling emit once
// per frame. A frame passed to emit may be reused by the source after emit
// returns.
type FrameSource func(ctx context.Context, emit func(i int, img *image.NRGBA) error) error

// Params describes the frames an encoder receives and the file it writes.
type Params struct {
	Output    string
	Width     int // frame size as produced by the FrameSource
	Height    int
	FPS       float64
	Filter    string // -vf chain, may be empty
	Encoder   string // ffmpeg codec name
	Quality   int    // 0 picks the codec default
	KeepAlpha bool
}

type VideoEncoder interface {
	Encode(ctx context.Context, frames FrameSource, params Params) error
}

// FFmpegEncoder streams raw frames into an ffmpeg process over stdin. NRGBA
// pixels are already the straight-alpha rgba layout ffmpeg reads.
type FFmpegEncoder struct {
	Binary string // defaults to "ffmpeg"
}

func (e *FFmpegEncoder) binary() string {
	if e.Binary != "" {
		return e.Binary
	}
	return "ffmpeg"
}

func (e *FFmpegEncoder) Encode(ctx context.Context, frames FrameSource, params Params) error {
	args := e.buildFFmpegArgs(params)

	cmd := exec.CommandContext(ctx, e.binary(), args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe error: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}

	bounds := image.Rect(0, 0, params.Width, params.Height)
	writeErr := frames(ctx, func(i int, img *image.NRGBA) error {
		if img.Bounds().Size() != bounds.Size() {
			return fmt.Errorf("frame %d is %v, encoder expects %v", i, img.Bounds().Size(), bounds.Size())
		}
		return e.writeRaw(stdin, img)
	})
	stdin.Close()

	waitErr := cmd.Wait()
	if writeErr != nil {
		// ffmpeg closing its stdin early shows up as a broken pipe; its log
		// says why.
		if waitErr != nil {
			return fmt.Errorf("write raw error: %w, ffmpeg: %v, output: %s", writeErr, waitErr, out.String())
		}
		return fmt.Errorf("write raw error: %w", writeErr)
	}
	if waitErr != nil {
		return fmt.Errorf("ffmpeg wait error: %w, output: %s", waitErr, out.String())
	}
	return nil
}

func (e *FFmpegEncoder) buildFFmpegArgs(params Params) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", params.Width, params.Height),
		"-framerate", formatFPS(params.FPS),
		"-i", "-",
	}
	return append(args, outputArgs(params)...)
}

// outputArgs are the arguments after the input: filters, codec, quality and
// the output path.
func outputArgs(params Params) []string {
	var args []string
	if params.Filter != "" {
		args = append(args, "-vf", params.Filter)
	}
	args = append(args, "-c:v", params.Encoder)
	args = append(args, QualityArgs(params.Encoder, params.Quality)...)

	pixFmt := "yuv420p"
	if params.KeepAlpha {
		pixFmt = "yuva420p"
		if params.Encoder == "libvpx-vp9" {
			// alt-ref frames are not supported together with alpha
			args = append(args, "-auto-alt-ref", "0")
		}
	}
	args = append(args, "-pix_fmt", pixFmt, params.Output)
	return args
}

// QualityArgs maps a single quality knob to each encoder's own setting.
func QualityArgs(encoder string, quality int) []string {
	if quality <= 0 {
		quality = DefaultQuality(encoder)
	}
	switch encoder {
	case "h264_videotoolbox":
		// VideoToolbox часто не поддерживает -q:v напрямую на всех версиях. Используем битрейт.
		bitrate := quality * 100 // кбит/с. 75 -> 7.5Мбит/с
		return []string{"-b:v", fmt.Sprintf("%dk", bitrate)}
	case "h264_nvenc":
		return []string{"-cq", strconv.Itoa(quality)}
	case "libvpx-vp9":
		return []string{"-crf", strconv.Itoa(quality), "-b:v", "0"}
	default: // libx264
		return []string{"-crf", strconv.Itoa(quality), "-preset", "medium"}
	}
}

func DefaultQuality(encoder string) int {
	switch encoder {
	case "h264_videotoolbox":
		return 75 // Хорошее качество для VideoToolbox
	case "h264_nvenc":
		return 28 // Эквивалент CRF для NVENC
	case "libvpx-vp9":
		return 31
	default:
		return 23 // Стандартный CRF для x264
	}
}

// CodecFor picks the codec for an output container. h264 is the H.264
// encoder detected on this machine.
func CodecFor(container, h264 string) (string, error) {
	switch container {
	case "webm":
		return "libvpx-vp9", nil
	case "mp4", "mov", "mkv":
		if h264 == "" {
			h264 = "libx264"
		}
		return h264, nil
	default:
		return "", fmt.Errorf("unsupported container %q (webm, mp4, mov, mkv)", container)
	}
}

func formatFPS(fps float64) string {
	return strconv.FormatFloat(fps, 'f', -1, 64)
}

func (e *FFmpegEncoder) writeRaw(w io.Writer, img *image.NRGBA) error {
	bounds := img.Bounds()
	row := 4 * bounds.Dx()
	if img.Stride == row {
		i := img.PixOffset(bounds.Min.X, bounds.Min.Y)
		_, err := w.Write(img.Pix[i : i+row*bounds.Dy()])
		return err
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		i := img.PixOffset(bounds.Min.X, y)
		if _, err := w.Write(img.Pix[i : i+row]); err != nil {
			return err
		}
	}
	return nil
}

// ErrNoFrames is returned when a source produced nothing to encode.
var ErrNoFrames = errors.New("no frames to encode")
