package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ivlev/lava2video/internal/config"
	"github.com/ivlev/lava2video/internal/effects"
	"github.com/ivlev/lava2video/internal/engine"
	"github.com/ivlev/lava2video/internal/system"
	"github.com/ivlev/lava2video/internal/video"
)

var BuildVersion = "dev"

func main() {
	// Увеличиваем лимиты системы (для macOS/Linux)
	system.InitResourceLimits()

	// Создаем нужные директории, если их нет
	dirs := []string{"input/lava", "output"}
	for _, d := range dirs {
		os.MkdirAll(d, 0755)
	}

	configPtr := flag.String("config", "", "YAML-файл задания (флаги командной строки имеют приоритет)")
	saveConfigPtr := flag.String("save-config", "", "Сохранить итоговое задание в YAML и выйти")
	inputPtr := flag.String("input", "", "Папка lava-анимации или manifest.json (по умолчанию: самая свежая папка в input/lava/)")
	outputPtr := flag.String("output", "", "Путь к видео (если пусто, генерируется автоматически в output/)")
	formatPtr := flag.String("format", "webm", "Контейнер для автоматического имени: webm (с прозрачностью), mp4, mov, mkv")
	schemaPtr := flag.String("schema", "canonical", "Формат diff-записей: canonical (5 чисел) или legacy (4 числа)")
	fpsPtr := flag.Float64("fps", 0, "FPS (0 - из манифеста)")
	widthPtr := flag.Int("width", 0, "Ширина (0 - как у анимации)")
	heightPtr := flag.Int("height", 0, "Высота (0 - как у анимации)")
	presetPtr := flag.String("preset", "", "Пресет размера: 720p, 1080p, square")
	workersPtr := flag.Int("workers", 0, "Потоки (0 - по числу CPU с учетом памяти)")
	encoderPtr := flag.String("encoder", "", "Кодек H.264 для mp4/mov/mkv (по умолчанию: лучший доступный)")
	qualityPtr := flag.Int("quality", 0, "Качество видео (0 - авто, x264/vp9: CRF, VideoToolbox: битрейт = Q*100кбит/с)")
	backgroundPtr := flag.String("background", "", "Цвет фона #rrggbb вместо прозрачности")
	sequencePtr := flag.Bool("sequence", false, "Сначала сохранить кадры в PNG, затем кодировать")
	framesDirPtr := flag.String("frames-dir", "", "Папка для PNG-кадров (с -sequence); иначе временная")
	statsPtr := flag.Bool("stats", false, "Показать отчет о производительности и дописать benchmark.log")
	debugPtr := flag.Bool("debug", false, "Номер кадра поверх видео")

	flag.Parse()

	width, height := *widthPtr, *heightPtr
	switch *presetPtr {
	case "720p":
		width, height = 1280, 720
	case "1080p":
		width, height = 1920, 1080
	case "square":
		width, height = 1080, 1080
	}

	cfg := &config.Config{
		InputPath:    *inputPtr,
		OutputVideo:  *outputPtr,
		Schema:       *schemaPtr,
		FPS:          *fpsPtr,
		Width:        width,
		Height:       height,
		Workers:      *workersPtr,
		VideoEncoder: *encoderPtr,
		Quality:      *qualityPtr,
		Background:   *backgroundPtr,
		Sequence:     *sequencePtr,
		FramesDir:    *framesDirPtr,
		ShowStats:    *statsPtr,
		Debug:        *debugPtr,
	}

	if *configPtr != "" {
		fileCfg, err := config.Load(*configPtr)
		if err != nil {
			log.Fatalf("[-] Ошибка чтения задания: %v", err)
		}
		flag.Visit(func(f *flag.Flag) { override(fileCfg, cfg, f.Name) })
		cfg = fileCfg
		fmt.Printf("[*] Используется задание: %s\n", *configPtr)
	}
	// lava2video [flags] <lava-dir> [output]
	if flag.NArg() > 0 {
		cfg.InputPath = flag.Arg(0)
	}
	if flag.NArg() > 1 {
		cfg.OutputVideo = flag.Arg(1)
	}
	cfg.BuildVersion = BuildVersion

	if cfg.InputPath == "" {
		latest, err := system.FindLatestLava("input/lava")
		if err != nil {
			log.Fatalf("[-] Ошибка: %v. Положите lava-папку в input/lava/", err)
		}
		cfg.InputPath = latest
		fmt.Printf("[*] Выбрана анимация: %s\n", cfg.InputPath)
	}

	if cfg.OutputVideo == "" {
		name := filepath.Base(strings.TrimSuffix(cfg.InputPath, string(filepath.Separator)))
		if !isDir(cfg.InputPath) {
			name = filepath.Base(filepath.Dir(cfg.InputPath))
		}
		cleanName := strings.ReplaceAll(name, " ", "_")
		timestamp := time.Now().Format("2006-01-02_15-04-05")
		cfg.OutputVideo = filepath.Join("output", fmt.Sprintf("%s_%s.%s", cleanName, timestamp, *formatPtr))
	}

	if cfg.VideoEncoder == "" && cfg.Container() != "webm" {
		encoderName, _ := system.GetBestH264Encoder()
		if encoderName != "libx264" {
			fmt.Printf("[*] Обнаружено аппаратное ускорение: %s\n", encoderName)
		}
		cfg.VideoEncoder = encoderName
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] Ошибка параметров: %v", err)
	}

	if *saveConfigPtr != "" {
		if err := cfg.Write(*saveConfigPtr); err != nil {
			log.Fatalf("[-] Ошибка сохранения задания: %v", err)
		}
		fmt.Printf("[+++] Задание сохранено: %s\n", *saveConfigPtr)
		return
	}

	if !system.HasFFmpeg() {
		log.Fatalf("[-] ffmpeg не найден в PATH")
	}

	// Инициализируем зависимости
	var ve video.VideoEncoder = &video.FFmpegEncoder{}
	if cfg.Sequence {
		ve = &video.SequenceEncoder{FFmpeg: &video.FFmpegEncoder{}, Dir: cfg.FramesDir}
	}
	eff := &effects.DefaultEffect{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	project := engine.NewVideoProject(cfg, ve, eff)
	if err := project.Run(ctx); err != nil {
		log.Fatalf("[-] Ошибка проекта: %v", err)
	}

	fmt.Printf("[+++] Успех! Результат: %s\n", cfg.OutputVideo)
}

// override copies the value of an explicitly set flag from src into dst.
func override(dst, src *config.Config, name string) {
	switch name {
	case "input":
		dst.InputPath = src.InputPath
	case "output":
		dst.OutputVideo = src.OutputVideo
	case "schema":
		dst.Schema = src.Schema
	case "fps":
		dst.FPS = src.FPS
	case "width", "height", "preset":
		dst.Width, dst.Height = src.Width, src.Height
	case "workers":
		dst.Workers = src.Workers
	case "encoder":
		dst.VideoEncoder = src.VideoEncoder
	case "quality":
		dst.Quality = src.Quality
	case "background":
		dst.Background = src.Background
	case "sequence":
		dst.Sequence = src.Sequence
	case "frames-dir":
		dst.FramesDir = src.FramesDir
	case "stats":
		dst.ShowStats = src.ShowStats
	case "debug":
		dst.Debug = src.Debug
	}
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
