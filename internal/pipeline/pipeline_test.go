package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/vidoptimizer/internal/config"
	"github.com/backmassage/vidoptimizer/internal/logging"
	"github.com/backmassage/vidoptimizer/internal/probe"
	"github.com/backmassage/vidoptimizer/internal/profile"
)

// --- Discover tests ---

func TestDiscover_FiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.mp4")
	touch(t, dir, "b.txt")
	touch(t, dir, "c.MOV")
	touch(t, dir, "movie.mkv")
	touch(t, filepath.Join(dir, "sub"), "d.avi")

	files, err := Discover(dir)
	require.NoError(t, err)

	want := []string{
		filepath.Join(dir, "a.mp4"),
		filepath.Join(dir, "c.MOV"),
		filepath.Join(dir, "sub", "d.avi"),
	}
	assert.Equal(t, want, files)
}

func TestDiscover_EmptyDir(t *testing.T) {
	files, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscover_ReturnsAbsolutePaths(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.mp4")
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	files, err := Discover(".")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, filepath.IsAbs(files[0]), files[0])
}

func TestDiscover_Errors(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "file.mp4")

	for name, root := range map[string]string{
		"missing root": filepath.Join(dir, "nope"),
		"root is file": filepath.Join(dir, "file.mp4"),
	} {
		t.Run(name, func(t *testing.T) {
			files, err := Discover(root)
			assert.Nil(t, files)
			var de *DiscoveryError
			require.True(t, errors.As(err, &de), "got %v", err)
			assert.Equal(t, root, de.Root)
		})
	}
}

func TestDiscover_UnreadableSubdirDiscardsResults(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits not enforced")
	}
	dir := t.TempDir()
	touch(t, dir, "a.mp4")
	locked := filepath.Join(dir, "z")
	touch(t, locked, "b.mp4")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	files, err := Discover(dir)
	assert.Nil(t, files)
	var de *DiscoveryError
	assert.True(t, errors.As(err, &de))
}

// --- Results and stats ---

func TestResults_ConcurrentAppend(t *testing.T) {
	r := NewResults(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Append(EncodeResult{Source: fmt.Sprint(i), Status: StatusSucceeded})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, r.Len())

	snap := r.Snapshot()
	snap[0].Source = "mutated"
	assert.NotEqual(t, "mutated", r.Snapshot()[0].Source, "snapshot must be a copy")
}

func TestSummarize(t *testing.T) {
	s := Summarize([]EncodeResult{
		{Status: StatusSucceeded, InputBytes: 1000, OutputBytes: 400},
		{Status: StatusSucceeded, InputBytes: 500, OutputBytes: 600},
		{Status: StatusFailed, InputBytes: 9999},
		{Status: StatusSkipped},
	})
	assert.Equal(t, RunStats{
		Total: 4, Succeeded: 2, Skipped: 1, Failed: 1,
		TotalInputBytes: 1500, TotalOutputBytes: 1000,
	}, s)
	assert.Equal(t, int64(500), s.SpaceSaved())
}

func TestEncodeResult_Ratio(t *testing.T) {
	assert.Equal(t, int64(40), EncodeResult{InputBytes: 1000, OutputBytes: 400}.Ratio())
	assert.Equal(t, int64(0), EncodeResult{InputBytes: 1000}.Ratio())
}

// --- Orchestrator tests ---

func TestStart_EveryFileGetsOneResult(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "a.mp4")
	touch(t, in, "fail.mov")
	touch(t, filepath.Join(in, "sub"), "c.avi")
	touch(t, filepath.Join(in, "sub"), "notes.txt")

	cfg := testConfig(t, fakeEncoder(t))
	cfg.Workers = 2
	o := NewOrchestrator(cfg, logging.Nop(), WithProber(stubProber{}))

	b, err := o.Start(context.Background(), request(in, out))
	require.NoError(t, err)
	assert.Equal(t, 3, b.Total())

	results := b.Wait()
	require.Len(t, results, 3)
	assert.Equal(t, 3, b.Finished())

	byName := resultsByName(results)
	for _, name := range []string{"a.mp4", "c.avi"} {
		r := byName[name]
		assert.Equal(t, StatusSucceeded, r.Status, name)
		assert.Equal(t, "h264", r.InputCodec, name)
		assert.Equal(t, "hevc", r.OutputCodec, name)
		assert.Equal(t, 0, r.ExitCode)
		assert.FileExists(t, r.Output)
		assert.Equal(t, "HD libx265 -crf 23 -preset fast", r.Profile)
		assert.NotEqual(t, uuid.Nil, r.ID)
	}
	assert.Equal(t, filepath.Join(out, "a_optimized.mp4"), byName["a.mp4"].Output)

	failed := byName["fail.mov"]
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, 1, failed.ExitCode)
	assert.Equal(t, "h264", failed.InputCodec, "codecs parsed before the failure are kept")
	assert.Contains(t, failed.Err, "exit code 1")
	assert.NoFileExists(t, failed.Output)
}

func TestStart_UnboundedWorkers(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	for i := 0; i < 6; i++ {
		touch(t, in, fmt.Sprintf("clip%d.mp4", i))
	}
	cfg := testConfig(t, fakeEncoder(t))
	cfg.Workers = 0

	b, err := NewOrchestrator(cfg, logging.Nop(), WithProber(stubProber{})).Start(context.Background(), request(in, out))
	require.NoError(t, err)
	results := b.Wait()
	assert.Len(t, results, 6)
	assert.Equal(t, 6, Summarize(results).Succeeded)
}

func TestStart_DiscoveryErrorLaunchesNothing(t *testing.T) {
	out := t.TempDir()
	cfg := testConfig(t, fakeEncoder(t))

	b, err := NewOrchestrator(cfg, logging.Nop(), WithProber(stubProber{})).
		Start(context.Background(), request(filepath.Join(out, "missing"), out))
	assert.Nil(t, b)
	var de *DiscoveryError
	assert.True(t, errors.As(err, &de))

	entries, _ := os.ReadDir(out)
	assert.Empty(t, entries)
}

func TestStart_RejectsUnknownCodec(t *testing.T) {
	cfg := testConfig(t, fakeEncoder(t))
	req := request(t.TempDir(), t.TempDir())
	req.Codec = "av1"
	_, err := NewOrchestrator(cfg, logging.Nop()).Start(context.Background(), req)
	assert.Error(t, err)
}

func TestStart_SkipsExistingOutputs(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "a.mp4")
	touch(t, in, "b.mp4")
	touch(t, out, "a_optimized.mp4")

	cfg := testConfig(t, fakeEncoder(t))
	b, err := NewOrchestrator(cfg, logging.Nop(), WithProber(stubProber{})).Start(context.Background(), request(in, out))
	require.NoError(t, err)

	byName := resultsByName(b.Wait())
	assert.Equal(t, StatusSkipped, byName["a.mp4"].Status)
	assert.Equal(t, StatusSucceeded, byName["b.mp4"].Status)
}

func TestStart_ProbeFailureIsolated(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "a.mp4")
	touch(t, in, "noprobe.mp4")
	touch(t, in, "novideo.mp4")

	cfg := testConfig(t, fakeEncoder(t))
	b, err := NewOrchestrator(cfg, logging.Nop(), WithProber(stubProber{})).Start(context.Background(), request(in, out))
	require.NoError(t, err)

	byName := resultsByName(b.Wait())
	assert.Equal(t, StatusSucceeded, byName["a.mp4"].Status)
	for _, name := range []string{"noprobe.mp4", "novideo.mp4"} {
		assert.Equal(t, StatusFailed, byName[name].Status, name)
		assert.Contains(t, byName[name].Err, "probe", name)
	}
}

func TestStart_LaunchErrorFailsEveryFile(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "a.mp4")
	touch(t, in, "b.mov")

	cfg := testConfig(t, filepath.Join(t.TempDir(), "no-such-ffmpeg"))
	b, err := NewOrchestrator(cfg, logging.Nop(), WithProber(stubProber{})).Start(context.Background(), request(in, out))
	require.NoError(t, err)

	results := b.Wait()
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, StatusFailed, r.Status)
		assert.Contains(t, r.Err, "launch")
		assert.Equal(t, -1, r.ExitCode)
	}
}

func TestStart_OutputDirLocked(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "a.mp4")

	held, err := lockOutputDir(out)
	require.NoError(t, err)
	defer held.Unlock()

	cfg := testConfig(t, fakeEncoder(t))
	_, err = NewOrchestrator(cfg, logging.Nop(), WithProber(stubProber{})).Start(context.Background(), request(in, out))
	assert.True(t, errors.Is(err, ErrOutputLocked), "got %v", err)
}

func TestStart_CancelledContext(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "a.mp4")
	touch(t, in, "b.mp4")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig(t, fakeEncoder(t))
	b, err := NewOrchestrator(cfg, logging.Nop(), WithProber(stubProber{})).Start(ctx, request(in, out))
	require.NoError(t, err)

	results := b.Wait()
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, StatusFailed, r.Status)
	}
}

func TestStart_ReportsProgress(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "a.mp4")
	touch(t, in, "b.mp4")
	touch(t, in, "fail.mp4")
	touch(t, in, "noprobe.mp4")
	touch(t, out, "b_optimized.mp4")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &recordingSink{}
	cfg := testConfig(t, fakeEncoder(t))
	b, err := NewOrchestrator(cfg, logging.Nop(), WithProber(stubProber{}), WithProgress(sink)).
		Start(ctx, request(in, out))
	require.NoError(t, err)
	require.Len(t, b.Wait(), 4)

	sink.mu.Lock()
	defer sink.mu.Unlock()

	a := filepath.Join(in, "a.mp4")
	require.NotEmpty(t, sink.updates[a])
	assert.Equal(t, 50.0, sink.updates[a][0])
	assert.Equal(t, 100.0, sink.updates[a][len(sink.updates[a])-1])

	assert.Len(t, sink.done, 4, "every file reports Done once")
	assert.Equal(t, 4, sink.calls)
	assert.Equal(t, true, sink.done[a])
	assert.Equal(t, true, sink.done[filepath.Join(in, "b.mp4")], "skipped file")
	assert.Equal(t, []float64{100}, sink.updates[filepath.Join(in, "b.mp4")])
	assert.Equal(t, false, sink.done[filepath.Join(in, "fail.mp4")])
	assert.Equal(t, false, sink.done[filepath.Join(in, "noprobe.mp4")], "unprobeable file")
}

func TestStart_CancelledContextReportsDone(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "a.mp4")
	touch(t, in, "b.mp4")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &recordingSink{}
	cfg := testConfig(t, fakeEncoder(t))
	b, err := NewOrchestrator(cfg, logging.Nop(), WithProber(stubProber{}), WithProgress(sink)).
		Start(ctx, request(in, out))
	require.NoError(t, err)
	b.Wait()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 2, sink.calls)
	for _, ok := range sink.done {
		assert.False(t, ok)
	}
}

func TestStart_OutputNamesFollowWalkOrder(t *testing.T) {
	for n := 0; n < 10; n++ {
		in, out := t.TempDir(), t.TempDir()
		touch(t, in, "a.mp4")
		touch(t, filepath.Join(in, "sub"), "a.mov")
		touch(t, filepath.Join(in, "sub", "z"), "a.avi")

		cfg := testConfig(t, fakeEncoder(t))
		cfg.Workers = 0
		b, err := NewOrchestrator(cfg, logging.Nop(), WithProber(stubProber{})).Start(context.Background(), request(in, out))
		require.NoError(t, err)

		assert.Equal(t, []string{
			filepath.Join(out, "a_optimized.mp4"),
			filepath.Join(out, "a_optimized - dup1.mp4"),
			filepath.Join(out, "a_optimized - dup2.mp4"),
		}, b.Outputs)

		byName := resultsByName(b.Wait())
		assert.Equal(t, filepath.Join(out, "a_optimized.mp4"), byName["a.mp4"].Output)
		assert.Equal(t, filepath.Join(out, "a_optimized - dup1.mp4"), byName["a.mov"].Output)
		assert.Equal(t, filepath.Join(out, "a_optimized - dup2.mp4"), byName["a.avi"].Output)
	}
}

func TestBatch_DoneAndFinished(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "a.mp4")
	touch(t, in, "b.mp4")

	cfg := testConfig(t, fakeEncoder(t))
	b, err := NewOrchestrator(cfg, logging.Nop(), WithProber(stubProber{})).Start(context.Background(), request(in, out))
	require.NoError(t, err)

	select {
	case <-b.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("batch did not finish")
	}
	assert.Equal(t, b.Total(), b.Finished())
	assert.Len(t, b.Results(), 2)
}

func TestRun_ReturnsStats(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "a.mp4")
	touch(t, in, "fail.avi")

	cfg := testConfig(t, fakeEncoder(t))
	cfg.InputDir, cfg.OutputDir = in, out

	results, stats, err := Run(context.Background(), cfg, logging.Nop(), WithProber(stubProber{}))
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)

	rows := ReportRows(results)
	require.Len(t, rows, 2)
}

// --- Runner tests ---

func TestRunner_Timeout(t *testing.T) {
	bin := writeScript(t, "exec sleep 5\n")
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mp4")
	touch(t, dir, "a.mp4")

	r := &Runner{FFmpegPath: bin, Timeout: 100 * time.Millisecond, Log: logging.Nop()}
	start := time.Now()
	res := r.Run(context.Background(), Job{
		Source:  src,
		Output:  filepath.Join(dir, "a_optimized.mp4"),
		Profile: profile.Select(probe.Geometry{Width: 1280, Height: 720}, config.CodecH264, config.AccelNone),
	})
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "timed out", res.Err)
}

func TestRunner_EncoderLinesReachLogFile(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "fail.mp4")
	logPath := filepath.Join(dir, "batch.log")
	log, err := logging.New(logging.Options{Stdout: io.Discard, Stderr: io.Discard, LogFile: logPath})
	require.NoError(t, err)

	r := &Runner{FFmpegPath: fakeEncoder(t), Log: log}
	res := r.Run(context.Background(), Job{
		Source:  filepath.Join(dir, "fail.mp4"),
		Output:  filepath.Join(dir, "fail_optimized.mp4"),
		Profile: profile.Select(probe.Geometry{Width: 1920, Height: 1080}, config.CodecH265, config.AccelNone),
	})
	require.NoError(t, log.Close())
	assert.Equal(t, StatusFailed, res.Status)

	b, err := os.ReadFile(logPath)
	require.NoError(t, err)
	got := string(b)
	assert.Contains(t, got, "[DEBUG] Conversion failed! component=ffmpeg file=fail.mp4")
	assert.Contains(t, got, "[DEBUG] Command: ")
	assert.Contains(t, got, "[INFO] Stream mapping: h264 -> hevc file=fail.mp4")
}

func TestRunner_PassesBuiltArguments(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	bin := writeScript(t, `for a in "$@"; do echo "$a"; done > `+argsFile+"\n")
	touch(t, dir, "in.mov")

	r := &Runner{FFmpegPath: bin, AudioCodec: "aac", AudioBitrate: "128k", Format: "mp4", Log: logging.Nop()}
	res := r.Run(context.Background(), Job{
		Source:  filepath.Join(dir, "in.mov"),
		Output:  filepath.Join(dir, "in_optimized.mp4"),
		Profile: profile.Select(probe.Geometry{Width: 3840, Height: 2160}, config.CodecH265, config.AccelNVIDIA),
	})
	require.Equal(t, StatusSucceeded, res.Status)

	b, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	got := strings.Fields(string(b))
	assert.Equal(t, []string{
		"-hide_banner", "-nostdin", "-n",
		"-i", filepath.Join(dir, "in.mov"),
		"-c:v", "hevc_nvenc", "-rc", "vbr", "-cq", "19", "-preset", "slow",
		"-c:a", "aac", "-b:a", "128k",
		"-f", "mp4", filepath.Join(dir, "in_optimized.mp4"),
	}, got)
}

// --- Plan tests ---

func TestPlan(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "a.mp4")
	touch(t, in, "b.mov")
	touch(t, in, "noprobe.avi")
	touch(t, out, "b_optimized.mp4")

	cfg := testConfig(t, "ffmpeg")
	cfg.InputDir, cfg.OutputDir = in, out
	cfg.Acceleration = config.AccelNVIDIA
	cfg.Codec = config.CodecVP9

	entries, err := Plan(context.Background(), cfg, stubProber{})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	a := entries[0]
	assert.Equal(t, "1920x1080", a.Geometry)
	assert.Equal(t, profile.BandHD, a.Band)
	assert.Equal(t, "libvpx-vp9", a.Encoder)
	assert.Equal(t, profile.VP9Notice, a.Notice)
	assert.Contains(t, strings.Join(a.Args, " "), "-c:v libvpx-vp9 -rc vbr -cq 21 -preset slow")
	assert.False(t, a.Skip)

	assert.True(t, entries[1].Skip)
	assert.NotEmpty(t, entries[2].Err)

	rows := PlanRows(entries)
	assert.Equal(t, "a.mp4", rows[0].File)
	assert.Equal(t, "a_optimized.mp4", rows[0].Output)
}

func TestBitrateOutlierFlags(t *testing.T) {
	b := computeStats([]float64{1000, 1100, 1200, 1300, 1250, 1150, 90000})
	require.True(t, b.valid)
	assert.Equal(t, "", b.classify(1200))
	assert.Equal(t, "extreme", b.classify(90000))
	assert.Equal(t, "", b.classify(0))

	assert.False(t, computeStats([]float64{1, 2, 3}).valid, "too few samples")
}

// --- Helpers ---

// stubProber answers without ffprobe: 1080p h264 with 100 frames, except
// "noprobe*" (probe error) and "novideo*" (no video stream).
type stubProber struct{}

func (stubProber) Probe(_ context.Context, path string) (*probe.Result, error) {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "noprobe"):
		return nil, &probe.ProbeError{Path: path, Err: errors.New("invalid data")}
	case strings.HasPrefix(base, "novideo"):
		return &probe.Result{AudioCount: 1}, nil
	}
	return &probe.Result{
		PrimaryVideo: &probe.VideoStream{Codec: "h264", Width: 1920, Height: 1080, BitRate: 8_000_000, NbFrames: 100},
	}, nil
}

func (stubProber) CountFrames(context.Context, string) (int64, error) { return 100, nil }

type recordingSink struct {
	mu      sync.Mutex
	updates map[string][]float64
	done    map[string]bool
	calls   int
}

func (s *recordingSink) Update(path string, pct float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updates == nil {
		s.updates = make(map[string][]float64)
	}
	s.updates[path] = append(s.updates[path], pct)
}

func (s *recordingSink) Done(path string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		s.done = make(map[string]bool)
	}
	s.done[path] = ok
	s.calls++
}

// fakeEncoder writes a stand-in for ffmpeg. It prints a stream mapping
// block, fails inputs whose name contains "fail", and otherwise reports two
// progress frames and writes the output file.
func fakeEncoder(t *testing.T) string {
	t.Helper()
	return writeScript(t, `in=""; out=""; next=0
for a in "$@"; do
  if [ "$next" = 1 ]; then in="$a"; next=0; fi
  if [ "$a" = "-i" ]; then next=1; fi
  out="$a"
done
printf 'Stream mapping:\n  Stream #0:0 -> #0:0 (h264 (native) -> hevc (libx265))\n' >&2
case "$in" in
  *fail*) echo "Conversion failed!" >&2; exit 1 ;;
esac
printf 'frame=   50 fps=0.0 q=28.0\rframe=  100 fps=0.0 q=28.0 Lsize=N/A\n' >&2
printf 'encoded' > "$out"
exit 0
`)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture")
	}
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func testConfig(t *testing.T, ffmpegPath string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.FFmpegPath = ffmpegPath
	cfg.ColorMode = config.ColorNever
	cfg.Workers = 2
	return &cfg
}

func request(in, out string) BatchRequest {
	return BatchRequest{InputDir: in, OutputDir: out, Codec: config.CodecH265, Acceleration: config.AccelNone}
}

func resultsByName(results []EncodeResult) map[string]EncodeResult {
	m := make(map[string]EncodeResult, len(results))
	for _, r := range results {
		m[filepath.Base(r.Source)] = r
	}
	return m
}

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}
