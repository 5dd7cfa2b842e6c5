package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/ivlev/lava2video/internal/fixture"
)

func main() {
	opts := fixture.DefaultOptions()

	outPtr := flag.String("output", "input/lava/fixture", "Папка для тестовой анимации")
	flag.IntVar(&opts.Images, "images", opts.Images, "Количество базовых изображений")
	flag.IntVar(&opts.Frames, "frames", opts.Frames, "Количество кадров")
	flag.IntVar(&opts.CellSize, "cell", opts.CellSize, "Размер тайла в пикселях")
	flag.IntVar(&opts.Size, "size", opts.Size, "Размер QR-кода в пикселях")
	flag.IntVar(&opts.KeyEvery, "key-every", opts.KeyEvery, "Ключевой кадр каждые N кадров (0 - только первый)")
	flag.Float64Var(&opts.FPS, "fps", opts.FPS, "FPS")
	flag.BoolVar(&opts.Alpha, "alpha", opts.Alpha, "Прозрачный фон")
	flag.StringVar(&opts.Label, "label", opts.Label, "Текст QR-кодов")
	compressPtr := flag.String("compress", "", "Сжать манифест: gz, zst")

	flag.Parse()

	a, err := fixture.Build(opts)
	if err != nil {
		log.Fatalf("[-] Ошибка генерации: %v", err)
	}

	path, err := fixture.Write(a, *outPtr, fixture.Compression(*compressPtr))
	if err != nil {
		log.Fatalf("[-] Ошибка записи: %v", err)
	}

	keys, diffs := a.Manifest.FrameCounts()
	fmt.Printf("[*] %dx%d, тайл %dpx, кадров %d (key %d, diff %d)\n",
		a.Size().X, a.Size().Y, opts.CellSize, len(a.Manifest.Frames), keys, diffs)
	fmt.Printf("[+++] Успех! Манифест: %s\n", path)
}
