package main

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/egonelbre/exp-lidar-compression/las"
	"github.com/egonelbre/exp-lidar-compression/laszip"
	"github.com/egonelbre/exp-lidar-compression/laz"
)

func writeTestLAS(t *testing.T, path string, format laz.PointFormat, n int) []byte {
	t.Helper()

	rng := rand.New(rand.NewSource(1))
	points := make([]laszip.Point, n)
	var p laszip.Point
	for i := range points {
		p.X += int32(rng.Intn(50))
		p.Y += int32(rng.Intn(5) - 2)
		p.Z = int32(rng.Intn(1000))
		p.Intensity = uint16(rng.Intn(200))
		p.SetGPSTimeFloat(float64(i) * 0.001)
		points[i] = p
	}

	h := las.NewHeader(format, [3]float64{0.01, 0.01, 0.01}, [3]float64{})
	h.Summarize(points)
	prefix, err := h.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	w, err := las.NewWriter(&buf, prefix, format)
	if err != nil {
		t.Fatal(err)
	}
	for i := range points {
		if err := w.Write(&points[i]); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCompressDecompress(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tile.las")
	packed := filepath.Join(dir, "tile.lzpc")
	restored := filepath.Join(dir, "restored.las")

	original := writeTestLAS(t, src, laz.Format1, 3000)

	if code := Run(RootCommand(), []string{"-chunk-size=1000", "-workers=2", "-log-level=error", "compress", src, packed}); code != 0 {
		t.Fatalf("compress returned %d", code)
	}
	if code := Run(RootCommand(), []string{"-log-level=error", "info", "-chunks", packed}); code != 0 {
		t.Fatalf("info returned %d", code)
	}
	if code := Run(RootCommand(), []string{"-log-level=error", "decompress", packed, restored}); code != 0 {
		t.Fatalf("decompress returned %d", code)
	}

	got, err := os.ReadFile(restored)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, original) {
		t.Errorf("Restored file differs from the original (%d vs %d bytes)", len(got), len(original))
	}

	f, err := os.Open(packed)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		t.Fatal(err)
	}
	r, err := laz.NewReader(f, info.Size())
	if err != nil {
		t.Fatal(err)
	}
	if r.NumChunks() != 3 {
		t.Errorf("Expected 3 chunks, got %d", r.NumChunks())
	}
}

func TestCompressTruncatedLAS(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tile.las")
	packed := filepath.Join(dir, "tile.lzpc")

	data := writeTestLAS(t, src, laz.Format0, 2500)
	if err := os.WriteFile(src, data[:len(data)-10], 0o644); err != nil {
		t.Fatal(err)
	}

	if code := Run(RootCommand(), []string{"-chunk-size=1000", "-workers=2", "-log-level=error", "compress", src, packed}); code != 1 {
		t.Errorf("Expected exit code 1 for a truncated file, got %d", code)
	}
	if _, err := os.Stat(packed); !os.IsNotExist(err) {
		t.Errorf("Expected no output for a failed compression, got %v", err)
	}
}

func TestDecompressWithoutLASHeader(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tile.las")
	packed := filepath.Join(dir, "tile.lzpc")
	restored := filepath.Join(dir, "restored.las")

	original := writeTestLAS(t, src, laz.Format0, 500)

	if code := Run(RootCommand(), []string{"-log-level=error", "compress", "-no-las-header", src, packed}); code != 0 {
		t.Fatalf("compress returned %d", code)
	}
	if code := Run(RootCommand(), []string{"-log-level=error", "decompress", packed, restored}); code != 0 {
		t.Fatalf("decompress returned %d", code)
	}

	got, err := os.ReadFile(restored)
	if err != nil {
		t.Fatal(err)
	}
	// the generated header matches the one written by writeTestLAS
	if !bytes.Equal(got, original) {
		t.Errorf("Restored file differs from the original (%d vs %d bytes)", len(got), len(original))
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "lazpack.conf")
	if err := os.WriteFile(conf, []byte(`{"chunkSize": 123, "workers": 1, "logLevel": "error"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(dir, "tile.las")
	packed := filepath.Join(dir, "tile.lzpc")
	writeTestLAS(t, src, laz.Format0, 300)

	if code := Run(RootCommand(), []string{"-config=" + conf, "-workers=3", "compress", src, packed}); code != 0 {
		t.Fatalf("compress returned %d", code)
	}
	if app.config.ChunkSize != 123 || app.config.Workers != 3 {
		t.Errorf("Expected chunk size 123 from file and 3 workers from flags, got %+v", app.config)
	}
}

func TestUsageErrors(t *testing.T) {
	tests := [][]string{
		{"-log-level=error", "compress", "only-one-arg"},
		{"-log-level=error", "info"},
		{"-log-level=error", "decompress", "a", "b", "c"},
	}
	for _, args := range tests {
		if code := Run(RootCommand(), args); code != 2 {
			t.Errorf("%v: expected exit code 2, got %d", args, code)
		}
	}

	if code := Run(RootCommand(), []string{"-log-level=error", "info", filepath.Join(t.TempDir(), "missing")}); code != 1 {
		t.Errorf("Expected exit code 1 for a missing file, got %d", code)
	}
}

func TestWrongInputKind(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tile.las")
	packed := filepath.Join(dir, "tile.lzpc")
	writeTestLAS(t, src, laz.Format0, 10)

	if code := Run(RootCommand(), []string{"-log-level=error", "decompress", src, filepath.Join(dir, "out.las")}); code != 1 {
		t.Errorf("Expected decompress of a LAS file to fail, got exit code %d", code)
	}
	if code := Run(RootCommand(), []string{"-log-level=error", "compress", src, packed}); code != 0 {
		t.Fatalf("compress failed with exit code %d", code)
	}
	if code := Run(RootCommand(), []string{"-log-level=error", "compress", packed, filepath.Join(dir, "again.lzpc")}); code != 1 {
		t.Errorf("Expected compress of a container to fail, got exit code %d", code)
	}

	if err := expectFile(packed, containerType); err != nil {
		t.Errorf("expectFile(container): %v", err)
	}
	if err := expectFile(src, containerType); err == nil {
		t.Error("Expected a LAS file not to match the container type")
	}
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	first := filepath.Join(dir, "one.las")
	second := filepath.Join(nested, "two.LAS")
	writeTestLAS(t, first, laz.Format1, 200)
	writeTestLAS(t, second, laz.Format3, 300)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, failed := collectLASFiles([]string{dir, filepath.Join(dir, "missing")})
	if len(files) != 2 || files[0] != second || files[1] != first {
		t.Errorf("Unexpected files %v", files)
	}
	if len(failed) != 1 {
		t.Errorf("Expected the missing location to fail, got %v", failed)
	}

	if code := Run(RootCommand(), []string{"-log-level=error", "batch", dir}); code != 0 {
		t.Fatalf("batch failed with exit code %d", code)
	}
	for _, src := range []string{first, second} {
		if err := expectFile(containerPath(src), containerType); err != nil {
			t.Error(err)
		}
	}
}

func TestLogLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "debug",
		"WARNING": "warn",
		"error":   "error",
		"bogus":   "debug",
	}
	for in, want := range tests {
		if got := parseLogLevel(in).String(); got != want {
			t.Errorf("parseLogLevel(%q) = %s, expected %s", in, got, want)
		}
	}
}

func TestJSONLogger(t *testing.T) {
	defer func(l zerolog.Logger) { log.Logger = l }(log.Logger)

	var buf bytes.Buffer
	setupLogger("json", "info", &buf)
	log.Debug().Msg("hidden")
	log.Info().Int("points", 3).Msg("visible")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "visible" || entry["level"] != "info" || entry["points"] != float64(3) {
		t.Errorf("Unexpected entry %v", entry)
	}
	if _, err := time.Parse(time.RFC3339, entry["time"].(string)); err != nil {
		t.Errorf("Expected an RFC3339 time: %v", err)
	}
}
