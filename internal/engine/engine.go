package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/draw"

	"github.com/ivlev/lava2video/internal/asset"
	"github.com/ivlev/lava2video/internal/config"
	"github.com/ivlev/lava2video/internal/effects"
	"github.com/ivlev/lava2video/internal/manifest"
	"github.com/ivlev/lava2video/internal/reconstruct"
	"github.com/ivlev/lava2video/internal/system"
	"github.com/ivlev/lava2video/internal/video"
)

// Loader reads a lava animation. asset.Load is the default.
type Loader func(ctx context.Context, path string, opts asset.Options) (*asset.Asset, error)

type VideoProject struct {
	Config  *config.Config
	Load    Loader
	Encoder video.VideoEncoder
	Effect  effects.Effect

	// BenchmarkLog receives one line per run when ShowStats is set.
	BenchmarkLog string
}

func NewVideoProject(cfg *config.Config, ve video.VideoEncoder, eff effects.Effect) *VideoProject {
	return &VideoProject{
		Config:       cfg,
		Load:         asset.Load,
		Encoder:      ve,
		Effect:       eff,
		BenchmarkLog: "benchmark.log",
	}
}

// Run converts one lava animation into one video file. Any error aborts the
// whole job and removes the partial output.
func (p *VideoProject) Run(ctx context.Context) error {
	startTime := time.Now()

	if err := p.Config.Validate(); err != nil {
		return err
	}
	codec, err := video.CodecFor(p.Config.Container(), p.Config.VideoEncoder)
	if err != nil {
		return err
	}

	a, err := p.Load(ctx, p.Config.InputPath, asset.Options{
		Schema:  manifest.Schema(p.Config.Schema),
		Workers: p.Config.Workers,
	})
	if err != nil {
		return fmt.Errorf("ошибка загрузки анимации: %w", err)
	}
	loadTime := time.Since(startTime)

	m := a.Manifest
	frameCount := len(m.Frames)
	if frameCount == 0 {
		return fmt.Errorf("манифест не содержит кадров: %s", p.Config.InputPath)
	}

	fps := m.FPS
	if p.Config.FPS > 0 {
		fps = p.Config.FPS
	}
	size := a.Size()
	workers := system.MaxWorkersForFrame(p.Config.Workers, size.X, size.Y)

	r, err := reconstruct.New(m, a.Images,
		reconstruct.WithWorkers(workers),
		reconstruct.WithAllocator(system.GetClearImage),
	)
	if err != nil {
		return err
	}

	params := config.SegmentParams{
		Width:      size.X,
		Height:     size.Y,
		OutWidth:   p.Config.Width,
		OutHeight:  p.Config.Height,
		FPS:        fps,
		FrameCount: frameCount,
		Background: p.Config.Background,
		KeepAlpha:  p.Config.KeepAlpha(),
		Debug:      p.Config.Debug,
	}

	keys, diffs := m.FrameCounts()
	fmt.Println("--- [PROJECT: LAVA ENGINE] ---")
	fmt.Printf("[*] Источник: %s | Кадров: %d (key %d, diff %d) | Изображений: %d\n",
		p.Config.InputPath, frameCount, keys, diffs, len(a.Images))
	fmt.Printf("[*] Разрешение: %dx%d @ %g FPS | Тайл: %dpx | Потоков: %d\n",
		size.X, size.Y, fps, m.CellSize, workers)
	fmt.Printf("[*] Кодек: %s | Прозрачность: %v\n", codec, params.KeepAlpha)
	fmt.Println("-----------------------------")

	flatten, err := p.flattener()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(p.Config.OutputVideo); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	step := max(int(fps), 1)
	frames := func(ctx context.Context, emit func(i int, img *image.NRGBA) error) error {
		return r.Stream(ctx, func(i int, img *image.NRGBA) error {
			out := flatten(img)
			err := emit(i, out)
			system.PutImage(out)
			if err != nil {
				return err
			}
			if (i+1)%step == 0 || i+1 == frameCount {
				fmt.Printf("[>] Ready: %d/%d\n", i+1, frameCount)
			}
			return nil
		})
	}

	encodeStart := time.Now()
	err = p.Encoder.Encode(ctx, frames, video.Params{
		Output:    p.Config.OutputVideo,
		Width:     size.X,
		Height:    size.Y,
		FPS:       fps,
		Filter:    p.Effect.GenerateFilter(params),
		Encoder:   codec,
		Quality:   p.Config.Quality,
		KeepAlpha: params.KeepAlpha,
	})
	if err != nil {
		if rmErr := os.Remove(p.Config.OutputVideo); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Printf("[!] Не удалось удалить неполный файл %s: %v", p.Config.OutputVideo, rmErr)
		}
		return fmt.Errorf("ошибка кодирования видео: %w", err)
	}
	encodeTime := time.Since(encodeStart)

	if p.Config.ShowStats {
		p.report(frameCount, time.Since(startTime), loadTime, encodeTime)
	}
	return nil
}

// flattener returns the per-frame step that composes frames onto the
// background colour. Without a background frames pass through unchanged.
// The input frame is released when a new one is returned.
func (p *VideoProject) flattener() (func(*image.NRGBA) *image.NRGBA, error) {
	if p.Config.Background == "" {
		return func(img *image.NRGBA) *image.NRGBA { return img }, nil
	}
	c, err := config.ParseHexColor(p.Config.Background)
	if err != nil {
		return nil, err
	}
	bg := image.NewUniform(c)
	return func(img *image.NRGBA) *image.NRGBA {
		dst := system.GetImage(img.Rect)
		draw.Draw(dst, dst.Rect, bg, image.Point{}, draw.Src)
		draw.Draw(dst, dst.Rect, img, img.Rect.Min, draw.Over)
		system.PutImage(img)
		return dst
	}, nil
}

func (p *VideoProject) report(frameCount int, totalTime, loadTime, encodeTime time.Duration) {
	fps := float64(frameCount) / totalTime.Seconds()

	report := fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Total Time: %.2fs\n"+
			"Loading: %.2fs\n"+
			"Reconstruct + Encode: %.2fs\n"+
			"Effective FPS: %.2f\n"+
			"----------------------------\n",
		p.Config.BuildVersion, totalTime.Seconds(), loadTime.Seconds(), encodeTime.Seconds(), fps,
	)
	fmt.Print(report)

	if p.BenchmarkLog == "" {
		return
	}
	logEntry := fmt.Sprintf("[%s] Build: %s | Input: %s | Frames: %d | Total: %.2fs | Load: %.2fs | Encode: %.2fs | FPS: %.2f\n",
		time.Now().Format("2006-01-02 15:04:05"),
		p.Config.BuildVersion,
		filepath.Base(p.Config.InputPath),
		frameCount,
		totalTime.Seconds(),
		loadTime.Seconds(),
		encodeTime.Seconds(),
		fps,
	)

	if err := appendLog(p.BenchmarkLog, logEntry); err != nil {
		fmt.Printf("[!] Не удалось записать benchmark.log: %v\n", err)
	}
}

func appendLog(path, entry string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, err = f.WriteString(entry)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
