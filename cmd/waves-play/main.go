package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	waves "github.com/cbegin/waves-go"
	"github.com/cbegin/waves-go/internal/midiin"
	"github.com/cbegin/waves-go/internal/patch"
)

const defaultMML = "t100 o4 l8 q7 g>d<b>d g4 d4 <a>e c+e a2"

type options struct {
	sampleRate  int
	patchName   string
	mmlPath     string
	mmlInline   string
	loop        bool
	loops       int
	midiPort    string
	midiChannel int
	keys        bool
	backend     string
	channels    int
	volume      float64
	limiter     bool
	echoMs      float64
	echoWet     float64
	tremoloHz   float64
	tremolo     float64
}

func main() {
	var opts options
	flag.IntVar(&opts.sampleRate, "sample-rate", 48000, "output sample rate")
	flag.StringVar(&opts.patchName, "patch", "keys", "built-in patch: "+strings.Join(patch.Names(), "|"))
	flag.StringVar(&opts.mmlPath, "file", "", "path to an MML file")
	flag.StringVar(&opts.mmlInline, "mml", "", "inline MML string")
	flag.BoolVar(&opts.loop, "loop", false, "loop the score; use with -loops to count then stop")
	flag.IntVar(&opts.loops, "loops", 3, "when -loop, stop after N loops (0 = loop forever)")
	flag.StringVar(&opts.midiPort, "midi", "", "MIDI input port (index, name or substring)")
	flag.IntVar(&opts.midiChannel, "midi-channel", -1, "only accept this MIDI channel (0-15, -1 = all)")
	flag.BoolVar(&opts.keys, "keys", false, "play from the terminal keyboard")
	flag.StringVar(&opts.backend, "backend", "ebiten", "audio backend: ebiten|oto")
	flag.IntVar(&opts.channels, "channels", 2, "output channels (oto backend)")
	flag.Float64Var(&opts.volume, "volume", 1.0, "master volume scalar")
	flag.BoolVar(&opts.limiter, "limiter", true, "soft-limit the mixed output")
	flag.Float64Var(&opts.echoMs, "echo-ms", 0, "echo delay in milliseconds (0 = off)")
	flag.Float64Var(&opts.echoWet, "echo-wet", 0.3, "echo mix 0..1")
	flag.Float64Var(&opts.tremoloHz, "tremolo-rate", 5, "tremolo rate in Hz")
	flag.Float64Var(&opts.tremolo, "tremolo", 0, "tremolo depth 0..1 (0 = off)")
	listMIDI := flag.Bool("list-midi", false, "list MIDI input ports and exit")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := newLogger(*debug)
	defer midi.CloseDriver()

	if *listMIDI {
		ports, err := midiin.Ports()
		if err != nil {
			logger.Error("list MIDI ports", "err", err)
			os.Exit(1)
		}
		for i, name := range ports {
			fmt.Printf("%d: %s\n", i, name)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, opts, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("waves-play failed", "err", err)
		os.Exit(1)
	}
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level, AddSource: debug}))
	slog.SetDefault(logger)
	return logger
}

func run(ctx context.Context, opts options, logger *slog.Logger) error {
	backend, err := waves.ParseBackend(opts.backend)
	if err != nil {
		return err
	}
	engine, err := waves.New(float64(opts.sampleRate))
	if err != nil {
		return err
	}
	if err := patch.Apply(engine, opts.patchName); err != nil {
		return err
	}
	pl, err := waves.NewPlayer(engine,
		waves.WithBackend(backend),
		waves.WithChannels(opts.channels),
		waves.WithGain(opts.volume),
		waves.WithLimiter(opts.limiter),
		waves.WithEcho(opts.echoMs, 0.35, opts.echoWet),
		waves.WithTremolo(opts.tremoloHz, opts.tremolo),
		waves.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	if err := pl.Start(); err != nil {
		return err
	}
	defer pl.Stop()
	logger.Info("patch loaded", "patch", opts.patchName, "nodes", engine.NodeCount())

	mmlText, err := resolveMMLInput(opts.mmlPath, opts.mmlInline)
	if err != nil {
		return err
	}
	// With no input selected, fall back to the keyboard on a terminal and
	// to the demo score otherwise.
	if mmlText == "" && opts.midiPort == "" && !opts.keys {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			opts.keys = true
		} else {
			mmlText = defaultMML
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if mmlText != "" {
		events := pl.Watch()
		if err := pl.PlayMML(mmlText, opts.loop); err != nil {
			return err
		}
		g.Go(func() error {
			return followScore(ctx, pl, events, opts, logger, cancel)
		})
	}
	if opts.midiPort != "" {
		g.Go(func() error {
			return midiin.Listen(ctx, opts.midiPort, func(ev midiin.Event) {
				applyMIDI(pl, ev, logger)
			}, midiin.Options{Channel: opts.midiChannel, Logger: logger})
		})
	}
	if opts.keys {
		g.Go(func() error {
			defer cancel()
			return playKeyboard(ctx, pl, logger)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})
	return g.Wait()
}

func followScore(ctx context.Context, pl *waves.Player, events <-chan waves.PlaybackEvent, opts options, logger *slog.Logger, finish context.CancelFunc) error {
	loopCount := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			switch ev.Kind {
			case waves.EventPlaybackEnded:
				logger.Info("playback completed")
				if opts.midiPort == "" && !opts.keys {
					finish()
				}
				return nil
			case waves.EventLoopCompleted:
				loopCount++
				logger.Info("loop completed", "loop", loopCount)
				if opts.loop && opts.loops > 0 && loopCount >= opts.loops {
					if err := pl.StopScore(); err != nil {
						return err
					}
				}
			}
		}
	}
}

func applyMIDI(pl *waves.Player, ev midiin.Event, logger *slog.Logger) {
	var err error
	switch ev.Kind {
	case midiin.NoteOn:
		err = pl.NoteOn(ev.Note, ev.Velocity)
	case midiin.NoteOff:
		err = pl.NoteOff(ev.Note)
	case midiin.AllNotesOff:
		err = pl.AllNotesOff()
	}
	if err != nil {
		logger.Warn("MIDI event dropped", "kind", ev.Kind, "note", ev.Note, "err", err)
	}
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
	return "", nil
}
