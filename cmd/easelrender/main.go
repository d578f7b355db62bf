// Command easelrender replays a serialized picture and writes the
// flattened result as a PNG.
package main

import (
	"flag"
	"log"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/gogpu/easel"
	_ "github.com/gogpu/easel/gpu"
)

func main() {
	var (
		input    = flag.String("input", "", "serialized picture file")
		output   = flag.String("output", "picture.png", "output PNG file")
		backends = flag.String("backends", strings.Join(easel.DefaultModes(), ","), "backend priority list")
		scale    = flag.Float64("scale", 1, "output scale factor")
		verbose  = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	if *input == "" {
		log.Fatal("missing -input")
	}
	if *scale <= 0 {
		log.Fatalf("invalid scale %g", *scale)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	easel.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	data, err := os.ReadFile(*input)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *input, err)
	}

	pic, trailer, err := easel.Parse(data, strings.Split(*backends, ","))
	if err != nil {
		log.Fatalf("Failed to parse picture: %v", err)
	}
	defer pic.Free()
	if len(trailer) > 0 {
		log.Printf("Picture carries %d metadata lines", len(trailer))
	}

	if err := pic.Display(); err != nil {
		log.Fatalf("Failed to render: %v", err)
	}

	out := pic.Element()
	if *scale != 1 {
		w := int(math.Floor(float64(out.Width()) * *scale))
		h := int(math.Floor(float64(out.Height()) * *scale))
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		out = out.Resample(w, h)
	}
	if err := out.SavePNG(*output); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}

	w, h := out.Width(), out.Height()
	log.Printf("Rendered %s to %s (%dx%d, %s backend)", *input, *output, w, h, pic.BackendName())
}
