package waves

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

const testScore = "t140 o5 l8 q6 cdefgab>c<c"

func newRenderEngine(t *testing.T, sampleRate float64) *Engine {
	t.Helper()
	e := newTestEngine(t, sampleRate)
	buildExamplePatch(t, e)
	return e
}

func TestRenderMMLIsDeterministic(t *testing.T) {
	a, err := RenderMML(newRenderEngine(t, 8000), testScore, 1.5)
	if err != nil {
		t.Fatal(err)
	}
	b, err := RenderMML(newRenderEngine(t, 8000), testScore, 1.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 12000 || len(b) != len(a) {
		t.Fatalf("lengths = %d, %d; want 12000", len(a), len(b))
	}
	var energy float64
	for i := range a {
		if math.Float32bits(a[i]) != math.Float32bits(b[i]) {
			t.Fatalf("sample %d differs: %v vs %v", i, a[i], b[i])
		}
		energy += math.Abs(float64(a[i]))
	}
	if energy == 0 {
		t.Fatal("expected non-zero audio energy")
	}
}

func TestRenderUntilFinishedIncludesReleaseTail(t *testing.T) {
	const sr = 8000
	out, err := RenderMML(newRenderEngine(t, sr), "t120 q8 l4 c", 0, WithTail(0.05))
	if err != nil {
		t.Fatal(err)
	}
	// One quarter note at 120 BPM, then the one second release, then the tail.
	minFrames := sr/2 + sr + sr/20
	if len(out) < minFrames || len(out) > minFrames+2048 {
		t.Fatalf("rendered %d frames, want about %d", len(out), minFrames)
	}
	for i, s := range out[len(out)-sr/40:] {
		if s != 0 {
			t.Fatalf("tail sample %d = %v, want silence", i, s)
		}
	}
}

func TestRenderRejectsUnsupportedGraph(t *testing.T) {
	e := newTestEngine(t, 8000)
	h := mustCreate(t, e, Triangle, 1, 1, 0)
	mustConnect(t, e, h, OutputHandle)
	if _, err := RenderMML(e, "c", 0.1); err == nil {
		t.Fatal("expected an unsupported kind error")
	}
}

func TestRenderLimiterAndGain(t *testing.T) {
	e := newTestEngine(t, 8000)
	h := mustCreate(t, e, Sine, 1, 1, 0)
	mustConnect(t, e, h, OutputHandle)
	out, err := RenderMML(e, "q8 l1 c;q8 l1 e;q8 l1 g", 0.5, WithRenderLimiter(true), WithRenderGain(0.5))
	if err != nil {
		t.Fatal(err)
	}
	var peak float64
	for _, s := range out {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	if peak == 0 || peak >= 0.5 {
		t.Fatalf("peak = %v, want within (0, 0.5)", peak)
	}
}

func TestWriteWAVRoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1, -1, 2, -2}
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteWAV(f, samples, 22050, 2); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f, err = os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if buf.Format.SampleRate != 22050 || buf.Format.NumChannels != 2 {
		t.Fatalf("format = %+v", buf.Format)
	}
	want := []int{0, 16384, -16384, 32767, -32767, 32767, -32767}
	if len(buf.Data) != 2*len(want) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), 2*len(want))
	}
	for i, w := range want {
		if buf.Data[2*i] != w || buf.Data[2*i+1] != w {
			t.Fatalf("frame %d = %d/%d, want %d", i, buf.Data[2*i], buf.Data[2*i+1], w)
		}
	}
}

func TestWriteWAVRejectsBadFormat(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "bad.wav"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := WriteWAV(f, nil, 0, 1); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if err := WriteWAV(f, nil, 8000, 0); err == nil {
		t.Error("expected error for zero channels")
	}
}
