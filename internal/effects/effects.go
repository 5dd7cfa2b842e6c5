package effects

import (
	"fmt"
	"strings"

	"github.com/ivlev/lava2video/internal/config"
	"github.com/ivlev/lava2video/internal/system"
)

type Effect interface {
	GenerateFilter(params config.SegmentParams) string
}

// DefaultEffect prepares reconstructed frames for the encoder: optional
// scaling, padding to even dimensions and the output pixel format.
type DefaultEffect struct{}

func (e *DefaultEffect) GenerateFilter(p config.SegmentParams) string {
	var chain []string

	w, h := p.Width, p.Height
	if p.OutWidth > 0 && p.OutHeight > 0 && (p.OutWidth != w || p.OutHeight != h) {
		chain = append(chain, fmt.Sprintf(
			"scale=%d:%d:force_original_aspect_ratio=decrease:flags=lanczos",
			p.OutWidth, p.OutHeight,
		))
		w, h = p.OutWidth, p.OutHeight
	}

	// yuv420p требует четных размеров
	if w%2 != 0 || h%2 != 0 || len(chain) > 0 {
		chain = append(chain, fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black@0", even(w), even(h)))
	}

	if p.Debug && system.CheckFilterSupport("drawtext") {
		chain = append(chain, "drawtext=text='Frame %{n}':x=10:y=10:fontsize=24:fontcolor=yellow:box=1:boxcolor=black@0.5")
	}

	chain = append(chain, "format="+PixelFormat(p.KeepAlpha))
	return strings.Join(chain, ",")
}

// PixelFormat is the encoder pixel format for frames with or without alpha.
func PixelFormat(keepAlpha bool) string {
	if keepAlpha {
		return "yuva420p"
	}
	return "yuv420p"
}

// OutputSize is the frame size after GenerateFilter.
func OutputSize(p config.SegmentParams) (int, int) {
	w, h := p.Width, p.Height
	if p.OutWidth > 0 && p.OutHeight > 0 {
		w, h = p.OutWidth, p.OutHeight
	}
	return even(w), even(h)
}

func even(n int) int {
	if n%2 != 0 {
		return n + 1
	}
	return n
}
