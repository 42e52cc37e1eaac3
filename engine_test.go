package waves

import (
	"errors"
	"math"
	"testing"
)

func newTestEngine(t testing.TB, sampleRate float64) *Engine {
	t.Helper()
	e, err := New(sampleRate)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func mustCreate(t testing.TB, e *Engine, kind Kind, ratio, outAmp, modAmp float64) Handle {
	t.Helper()
	h, err := e.Create(kind, ratio, outAmp, modAmp)
	if err != nil {
		t.Fatalf("create %s: %v", kind, err)
	}
	return h
}

func mustConnect(t testing.TB, e *Engine, from, to Handle) {
	t.Helper()
	if err := e.Connect(from, to); err != nil {
		t.Fatalf("connect %d -> %d: %v", from, to, err)
	}
}

// buildExamplePatch wires a carrier with two modulators and per-node ADSR.
func buildExamplePatch(t testing.TB, e *Engine) {
	t.Helper()
	carrier := mustCreate(t, e, Sine, 1.0, 0.2, 0)
	m1 := mustCreate(t, e, Sine, 1.5, 0, 0.2)
	m2 := mustCreate(t, e, Sine, 0.5, 0, 6.0)
	mustConnect(t, e, m1, carrier)
	mustConnect(t, e, m2, carrier)
	mustConnect(t, e, carrier, OutputHandle)
	for h, env := range map[Handle]Envelope{
		carrier: {Attack: 0.1, Decay: 0.6, Sustain: 0.6, Release: 1.0},
		m1:      {Attack: 0.1, Decay: 0.3, Sustain: 0.4, Release: 0.4},
		m2:      {Attack: 0.1, Decay: 0.5, Sustain: 0.2, Release: 0.4},
	} {
		if err := e.SetEnvelope(h, env); err != nil {
			t.Fatalf("set envelope: %v", err)
		}
	}
}

func TestNewRejectsInvalidSampleRate(t *testing.T) {
	for _, sr := range []float64{0, -48000, math.NaN(), math.Inf(1)} {
		if _, err := New(sr); !errors.Is(err, ErrInvalidSampleRate) {
			t.Errorf("New(%v) = %v, want ErrInvalidSampleRate", sr, err)
		}
	}
}

func TestSingleSineWithoutModulation(t *testing.T) {
	e := newTestEngine(t, 48000)
	h := mustCreate(t, e, Sine, 1.0, 0.2, 0)
	mustConnect(t, e, h, OutputHandle)
	if err := e.NoteOn(69, 100); err != nil {
		t.Fatalf("note on: %v", err)
	}
	if got := e.GetFrame(); got != 0 {
		t.Fatalf("sample 0 = %v, want 0", got)
	}
	for n := 1; n < 2000; n++ {
		got := e.GetFrame()
		want := 0.2 * math.Sin(2*math.Pi*(float64(n)/48000)*440)
		if math.Abs(float64(got)-want) > 1e-6 {
			t.Fatalf("sample %d = %v, want %v", n, got, want)
		}
	}
}

func TestSilentWithoutActiveVoices(t *testing.T) {
	e := newTestEngine(t, 48000)
	buildExamplePatch(t, e)
	for i := 0; i < 100; i++ {
		if got := e.GetFrame(); got != 0 {
			t.Fatalf("frame %d = %v, want silence", i, got)
		}
	}
}

func TestRenderingIsDeterministic(t *testing.T) {
	render := func() []float32 {
		e := newTestEngine(t, 44100)
		buildExamplePatch(t, e)
		out := make([]float32, 0, 44100)
		_ = e.NoteOn(55, 1)
		_ = e.NoteOn(62, 1)
		buf := make([]float32, 22050)
		e.Process(buf)
		out = append(out, buf...)
		_ = e.NoteOff(55)
		_ = e.NoteOff(62)
		e.Process(buf)
		return append(out, buf...)
	}
	a, b := render(), render()
	for i := range a {
		if math.Float32bits(a[i]) != math.Float32bits(b[i]) {
			t.Fatalf("sample %d differs between runs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestLinearSuperposition(t *testing.T) {
	const frames = 4096
	render := func(indices ...int) []float64 {
		e := newTestEngine(t, 48000)
		buildExamplePatch(t, e)
		for _, i := range indices {
			if err := e.NoteOn(i, 100); err != nil {
				t.Fatalf("note on: %v", err)
			}
		}
		out := make([]float64, frames)
		for i := range out {
			out[i] = float64(e.GetFrame())
		}
		return out
	}
	a, b, c := render(48), render(60), render(67)
	all := render(48, 60, 67)
	for i := range all {
		want := a[i] + b[i] + c[i]
		if math.Abs(all[i]-want) > 1e-5 {
			t.Fatalf("frame %d: combined %v, sum of singles %v", i, all[i], want)
		}
	}
}

func TestEnvelopeAttackShapesOutput(t *testing.T) {
	e := newTestEngine(t, 1024)
	h := mustCreate(t, e, Sine, 1.0, 1.0, 0)
	mustConnect(t, e, h, OutputHandle)
	if err := e.SetEnvelope(h, Envelope{Attack: 0.5, Sustain: 1}); err != nil {
		t.Fatalf("set envelope: %v", err)
	}
	_ = e.NoteOn(69, 100)
	for n := 0; n < 1024; n++ {
		now := float64(n) / 1024
		level := now / 0.5
		if now >= 0.5 {
			level = 1
		}
		want := math.Sin(2*math.Pi*now*440) * level
		got := e.GetFrame()
		if math.Abs(float64(got)-want) > 1e-6 {
			t.Fatalf("frame %d = %v, want %v", n, got, want)
		}
	}
}

func TestDeactivationUsesGraphWideMaxRelease(t *testing.T) {
	e := newTestEngine(t, 1024)
	carrier := mustCreate(t, e, Sine, 1.0, 0.5, 0)
	mod := mustCreate(t, e, Sine, 2.0, 0, 1.0)
	mustConnect(t, e, mod, carrier)
	mustConnect(t, e, carrier, OutputHandle)
	if err := e.SetEnvelope(carrier, Envelope{Sustain: 1, Release: 0.25}); err != nil {
		t.Fatal(err)
	}
	if err := e.SetEnvelope(mod, Envelope{Sustain: 1, Release: 0.5}); err != nil {
		t.Fatal(err)
	}
	if got := e.MaxRelease(); got != 0.5 {
		t.Fatalf("max release = %v, want 0.5", got)
	}
	_ = e.NoteOn(60, 100)
	for e.Frames() < 128 {
		e.GetFrame()
	}
	t0 := e.Time()
	if t0 != 0.125 {
		t.Fatalf("clock = %v, want 0.125", t0)
	}
	_ = e.NoteOff(60)
	for e.Frames() < 640 {
		got := e.GetFrame()
		if e.ActiveVoiceCount() != 1 {
			t.Fatalf("voice retired early at %v", e.Time())
		}
		// The carrier's own release has run out; the voice is silent but
		// stays active until the longest release in the graph elapses.
		if e.Time()-t0 > 0.25+1.0/1024 && got != 0 {
			t.Fatalf("expected silence after carrier release, got %v at %v", got, e.Time())
		}
	}
	if got := e.GetFrame(); got != 0 {
		t.Fatalf("frame at max release = %v, want 0", got)
	}
	if got := e.ActiveVoiceCount(); got != 0 {
		t.Fatalf("active voices = %d, want 0", got)
	}
}

func TestNoteOffOnIdleVoiceIsSilent(t *testing.T) {
	e := newTestEngine(t, 48000)
	buildExamplePatch(t, e)
	if err := e.NoteOff(64); err != nil {
		t.Fatalf("note off: %v", err)
	}
	for i := 0; i < 256; i++ {
		if got := e.GetFrame(); got != 0 {
			t.Fatalf("frame %d = %v, want silence", i, got)
		}
		_ = e.NoteOff(64)
	}
	v, _ := e.Voice(64)
	if v.Active {
		t.Fatalf("note off revived an idle voice")
	}
}

func TestNoteOffTwiceDoesNotRevive(t *testing.T) {
	e := newTestEngine(t, 1000)
	h := mustCreate(t, e, Sine, 1, 0.3, 0)
	mustConnect(t, e, h, OutputHandle)
	_ = e.NoteOn(69, 100)
	e.GetFrame()
	_ = e.NoteOff(69)
	e.GetFrame()
	if e.ActiveVoiceCount() != 0 {
		t.Fatalf("voice with zero release should retire on the next frame")
	}
	_ = e.NoteOff(69)
	for i := 0; i < 10; i++ {
		if got := e.GetFrame(); got != 0 {
			t.Fatalf("frame %d = %v after second note off", i, got)
		}
	}
}

func TestNoteOnRange(t *testing.T) {
	e := newTestEngine(t, 48000)
	for _, i := range []int{-1, 128} {
		if err := e.NoteOn(i, 1); !errors.Is(err, ErrNoteRange) {
			t.Errorf("NoteOn(%d) = %v, want ErrNoteRange", i, err)
		}
		if err := e.NoteOff(i); !errors.Is(err, ErrNoteRange) {
			t.Errorf("NoteOff(%d) = %v, want ErrNoteRange", i, err)
		}
	}
}

func TestAllNotesOffReleasesEveryVoice(t *testing.T) {
	e := newTestEngine(t, 1024)
	buildExamplePatch(t, e)
	for _, i := range []int{40, 50, 60} {
		_ = e.NoteOn(i, 90)
	}
	e.Process(make([]float32, 16))
	e.AllNotesOff()
	// The longest release in the patch is one second.
	e.Process(make([]float32, 1024))
	if got := e.ActiveVoiceCount(); got != 3 {
		t.Fatalf("active before max release = %d, want 3", got)
	}
	e.Process(make([]float32, 1))
	if got := e.ActiveVoiceCount(); got != 0 {
		t.Fatalf("active after max release = %d, want 0", got)
	}
}

func TestUnsupportedKindPanicsWhenRendered(t *testing.T) {
	for _, kind := range []Kind{Triangle, Saw, Square} {
		t.Run(kind.String(), func(t *testing.T) {
			e := newTestEngine(t, 48000)
			h := mustCreate(t, e, kind, 1, 0.5, 0)
			mustConnect(t, e, h, OutputHandle)
			var uerr *UnsupportedKindError
			if err := e.Validate(); !errors.As(err, &uerr) || uerr.Handle != h {
				t.Fatalf("Validate = %v, want UnsupportedKindError for %d", err, h)
			}
			_ = e.NoteOn(60, 100)
			defer func() {
				r := recover()
				err, ok := r.(error)
				if !ok || !errors.Is(err, ErrUnsupportedKind) {
					t.Fatalf("recovered %v, want ErrUnsupportedKind", r)
				}
			}()
			e.GetFrame()
			t.Fatalf("GetFrame returned for %s oscillator", kind)
		})
	}
}

func TestUnsupportedKindOutsideRenderPathIsHarmless(t *testing.T) {
	e := newTestEngine(t, 48000)
	carrier := mustCreate(t, e, Sine, 1, 0.5, 0)
	mustConnect(t, e, carrier, OutputHandle)
	// Connected to nothing that reaches the output.
	mustCreate(t, e, Square, 1, 0.5, 0)
	if err := e.Validate(); err != nil {
		t.Fatalf("Validate = %v, want nil", err)
	}
	_ = e.NoteOn(60, 100)
	e.Process(make([]float32, 64))
}

func TestGraphSealedAfterFirstFrame(t *testing.T) {
	e := newTestEngine(t, 48000)
	h := mustCreate(t, e, Sine, 1, 0.5, 0)
	e.GetFrame()
	if !e.Sealed() {
		t.Fatalf("engine should be sealed after rendering")
	}
	if _, err := e.Create(Sine, 1, 1, 1); !errors.Is(err, ErrSealed) {
		t.Errorf("Create = %v, want ErrSealed", err)
	}
	if err := e.Connect(h, OutputHandle); !errors.Is(err, ErrSealed) {
		t.Errorf("Connect = %v, want ErrSealed", err)
	}
	if err := e.SetEnvelope(h, Envelope{Sustain: 1}); !errors.Is(err, ErrSealed) {
		t.Errorf("SetEnvelope = %v, want ErrSealed", err)
	}
}

func TestClockAdvancesOneSamplePeriodPerFrame(t *testing.T) {
	e := newTestEngine(t, 8)
	for i := 0; i < 16; i++ {
		if got, want := e.Time(), float64(i)/8; got != want {
			t.Fatalf("clock after %d frames = %v, want %v", i, got, want)
		}
		e.GetFrame()
	}
	if e.Frames() != 16 {
		t.Fatalf("frames = %d, want 16", e.Frames())
	}
}

func TestGetFrameDoesNotAllocate(t *testing.T) {
	e := newTestEngine(t, 48000)
	buildExamplePatch(t, e)
	for i := 0; i < 16; i++ {
		_ = e.NoteOn(40+i, 100)
	}
	allocs := testing.AllocsPerRun(1000, func() {
		e.GetFrame()
	})
	if allocs != 0 {
		t.Fatalf("GetFrame allocated %v times per call", allocs)
	}
}

func BenchmarkGetFrame(b *testing.B) {
	e := newTestEngine(b, 48000)
	buildExamplePatch(b, e)
	for i := 0; i < 8; i++ {
		_ = e.NoteOn(48+i*3, 100)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.GetFrame()
	}
}
