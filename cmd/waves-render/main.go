package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	waves "github.com/cbegin/waves-go"
	"github.com/cbegin/waves-go/internal/patch"
)

const defaultMML = "t100 o4 l8 q7 g>d<b>d g4 d4 <a>e c+e a2"

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		patchName  = flag.String("patch", "keys", "built-in patch: "+strings.Join(patch.Names(), "|"))
		mmlPath    = flag.String("file", "", "path to an MML file")
		mmlInline  = flag.String("mml", "", "inline MML string")
		seconds    = flag.Float64("seconds", 0, "render length in seconds (0 = until the score and its release tails end)")
		tail       = flag.Float64("tail", 0.25, "silence to keep after the last voice when -seconds is 0")
		out        = flag.String("out", "out.wav", "output WAV path")
		channels   = flag.Int("channels", 2, "channels in the output file")
		volume     = flag.Float64("volume", 1.0, "master volume scalar")
		limiter    = flag.Bool("limiter", true, "soft-limit the mixed output")
		echoMs     = flag.Float64("echo-ms", 0, "echo delay in milliseconds (0 = off)")
	)
	flag.Parse()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := render(*sampleRate, *patchName, *mmlPath, *mmlInline, *seconds, *tail, *out, *channels, *volume, *limiter, *echoMs, logger); err != nil {
		logger.Error("render failed", "err", err)
		os.Exit(1)
	}
}

func render(sampleRate int, patchName, mmlPath, mmlInline string, seconds, tail float64, out string, channels int, volume float64, limiter bool, echoMs float64, logger *slog.Logger) error {
	mmlText, err := resolveMMLInput(mmlPath, mmlInline)
	if err != nil {
		return err
	}
	engine, err := waves.New(float64(sampleRate))
	if err != nil {
		return err
	}
	if err := patch.Apply(engine, patchName); err != nil {
		return err
	}
	samples, err := waves.RenderMML(engine, mmlText, seconds,
		waves.WithTail(tail),
		waves.WithRenderLimiter(limiter),
		waves.WithRenderGain(volume),
		waves.WithRenderEcho(echoMs, 0.35, 0.3),
	)
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := waves.WriteWAV(f, samples, sampleRate, channels); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("wrote wav", "path", out, "frames", len(samples),
		"seconds", fmt.Sprintf("%.3f", float64(len(samples))/float64(sampleRate)), "patch", patchName)
	return nil
}

func resolveMMLInput(path string, inline string) (string, error) {
	if strings.TrimSpace(inline) != "" {
		return inline, nil
	}
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return defaultMML, nil
}
