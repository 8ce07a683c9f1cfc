package runtime

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"genaid/internal/backend/backendtest"
	"genaid/internal/config"
)

func TestCompileGraphPublishesArtifact(t *testing.T) {
	dir := t.TempDir()
	graph := filepath.Join(dir, "model.onnx")
	writeFile(t, graph, "graph bytes")

	eng := &backendtest.Engine{}
	opts := config.CompileOptions{EnableEPContext: true}
	out, err := compileGraph(eng, "decoder", graph, nil, opts)
	if err != nil {
		t.Fatalf("compileGraph: %v", err)
	}
	if want := DefaultArtifactPath(graph, backendtest.EngineName); out != want {
		t.Fatalf("artifact at %q, want %q", out, want)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !strings.HasPrefix(string(b), "compiled:") {
		t.Fatalf("unexpected artifact content %q", b)
	}

	// No temp files survive a successful publish.
	entries, err := os.ReadDir(filepath.Dir(out))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp.") {
			t.Fatalf("leftover temp file %s", e.Name())
		}
	}
}

func TestCompileThenResolveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	graph := filepath.Join(dir, "model.onnx")
	writeFile(t, graph, "graph bytes")

	eng := &backendtest.Engine{}
	opts := config.CompileOptions{EnableEPContext: true}
	if _, err := compileGraph(eng, "decoder", graph, nil, opts); err != nil {
		t.Fatalf("compileGraph: %v", err)
	}
	rec := ResolveArtifact(eng, graph, opts)
	if !rec.Exists || !rec.Valid {
		t.Fatalf("freshly compiled artifact did not validate: %+v", rec)
	}
}

func TestCompileGraphFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	graph := filepath.Join(dir, "model.onnx")
	writeFile(t, graph, "graph bytes")

	eng := &backendtest.Engine{CompileErr: errors.New("nvcc exploded")}
	opts := config.CompileOptions{EnableEPContext: true}
	_, err := compileGraph(eng, "decoder", graph, nil, opts)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsCompileError(err) {
		t.Fatalf("expected compile error, got %v", err)
	}
	if _, statErr := os.Stat(DefaultArtifactPath(graph, backendtest.EngineName)); !os.IsNotExist(statErr) {
		t.Fatalf("failed compile left an artifact behind")
	}
}

func TestCompileGraphRejectsEmbedOverThreshold(t *testing.T) {
	dir := t.TempDir()
	graph := filepath.Join(dir, "model.onnx")
	writeFile(t, graph, strings.Repeat("x", 128))

	eng := &backendtest.Engine{}
	opts := config.CompileOptions{
		EnableEPContext:                   true,
		EPContextEmbedMode:                true,
		ExternalInitializersSizeThreshold: 64,
	}
	_, err := compileGraph(eng, "decoder", graph, nil, opts)
	if err == nil || !IsConfigError(err) {
		t.Fatalf("expected config error, got %v", err)
	}
	if eng.TotalCompiles() != 0 {
		t.Fatalf("engine invoked despite invalid options")
	}

	// A small enough model embeds fine.
	opts.ExternalInitializersSizeThreshold = 4096
	if _, err := compileGraph(eng, "decoder", graph, nil, opts); err != nil {
		t.Fatalf("small model with embed mode: %v", err)
	}
}

func TestCompileGraphUsesInMemoryData(t *testing.T) {
	dir := t.TempDir()
	graph := filepath.Join(dir, "model.onnx")
	writeFile(t, graph, "on-disk bytes")

	eng := &backendtest.Engine{}
	opts := config.CompileOptions{EnableEPContext: true}
	out, err := compileGraph(eng, "decoder", graph, []byte("in-memory bytes"), opts)
	if err != nil {
		t.Fatalf("compileGraph: %v", err)
	}
	b, _ := os.ReadFile(out)
	if !strings.Contains(string(b), "buffer(") {
		t.Fatalf("engine did not receive the in-memory buffer: %q", b)
	}
}
