package runtime

import (
	"os"
	"path/filepath"
	"testing"

	"genaid/internal/backend"
	"genaid/internal/backend/backendtest"
	"genaid/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDefaultArtifactPath(t *testing.T) {
	got := DefaultArtifactPath("/models/phi/model.onnx", "fakeep")
	want := filepath.Join("/models/phi", "contexts", "model_fakeep_ctx.onnx")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestArtifactPathExplicitOverride(t *testing.T) {
	opts := config.CompileOptions{EPContextFilePath: "cache/custom.onnx"}
	got := artifactPath("/models/phi/model.onnx", opts, "fakeep")
	want := filepath.Join("/models/phi", "cache", "custom.onnx")
	if got != want {
		t.Fatalf("relative override: got %q, want %q", got, want)
	}

	opts.EPContextFilePath = "/elsewhere/custom.onnx"
	if got := artifactPath("/models/phi/model.onnx", opts, "fakeep"); got != "/elsewhere/custom.onnx" {
		t.Fatalf("absolute override: got %q", got)
	}
}

func TestResolveArtifactMissingFile(t *testing.T) {
	dir := t.TempDir()
	graph := filepath.Join(dir, "model.onnx")
	writeFile(t, graph, "graph")

	eng := &backendtest.Engine{}
	rec := ResolveArtifact(eng, graph, config.CompileOptions{EnableEPContext: true})
	if rec.Exists {
		t.Fatalf("missing artifact reported as existing: %+v", rec)
	}
	if rec.Valid {
		t.Fatalf("missing artifact reported as valid")
	}
	if rec.Path != DefaultArtifactPath(graph, backendtest.EngineName) {
		t.Fatalf("unexpected path %q", rec.Path)
	}
}

func TestResolveArtifactOptimal(t *testing.T) {
	dir := t.TempDir()
	graph := filepath.Join(dir, "model.onnx")
	writeFile(t, graph, "graph")
	artifact := DefaultArtifactPath(graph, backendtest.EngineName)
	writeFile(t, artifact, "stale bytes")

	eng := &backendtest.Engine{}
	eng.SetVerdict(artifact, backend.VerdictOptimal)

	rec := ResolveArtifact(eng, graph, config.CompileOptions{EnableEPContext: true})
	if !rec.Exists || !rec.Valid {
		t.Fatalf("optimal artifact not accepted: %+v", rec)
	}
}

func TestResolveArtifactPreferRecompilation(t *testing.T) {
	dir := t.TempDir()
	graph := filepath.Join(dir, "model.onnx")
	writeFile(t, graph, "graph")
	artifact := DefaultArtifactPath(graph, backendtest.EngineName)
	writeFile(t, artifact, "old driver build")

	eng := &backendtest.Engine{}
	eng.SetVerdict(artifact, backend.VerdictPreferRecompilation)

	// Tolerated with degraded performance when not forcing.
	rec := ResolveArtifact(eng, graph, config.CompileOptions{EnableEPContext: true})
	if !rec.Valid {
		t.Fatalf("prefer-recompilation artifact rejected without force: %+v", rec)
	}

	// Forcing turns the same verdict into a recompile.
	rec = ResolveArtifact(eng, graph, config.CompileOptions{EnableEPContext: true, ForceCompileIfNeeded: true})
	if rec.Valid {
		t.Fatalf("prefer-recompilation artifact accepted despite force_compile_if_needed")
	}
	if !rec.Exists {
		t.Fatalf("existing artifact reported missing")
	}
}

func TestResolveArtifactNoCompatibilityInfo(t *testing.T) {
	dir := t.TempDir()
	graph := filepath.Join(dir, "model.onnx")
	writeFile(t, graph, "graph")
	artifact := DefaultArtifactPath(graph, backendtest.EngineName)
	writeFile(t, artifact, "foreign file, no verdicts")

	eng := &backendtest.Engine{}
	rec := ResolveArtifact(eng, graph, config.CompileOptions{EnableEPContext: true})
	if rec.Valid {
		t.Fatalf("artifact without compatibility info must not be trusted")
	}
}

func TestResolveArtifactNotSupported(t *testing.T) {
	dir := t.TempDir()
	graph := filepath.Join(dir, "model.onnx")
	writeFile(t, graph, "graph")
	artifact := DefaultArtifactPath(graph, backendtest.EngineName)
	writeFile(t, artifact, "compiled for some other device")

	eng := &backendtest.Engine{}
	eng.SetVerdict(artifact, backend.VerdictNotSupported)

	if rec := ResolveArtifact(eng, graph, config.CompileOptions{EnableEPContext: true}); rec.Valid {
		t.Fatalf("not-supported artifact accepted")
	}
}

func TestResolveArtifactBestVerdictAcrossDevices(t *testing.T) {
	dir := t.TempDir()
	graph := filepath.Join(dir, "model.onnx")
	writeFile(t, graph, "graph")
	artifact := DefaultArtifactPath(graph, backendtest.EngineName)
	writeFile(t, artifact, "multi-device build")

	eng := &backendtest.Engine{DeviceList: []backend.Device{
		{ID: 0, Kind: "gpu", Name: "gpu0"},
		{ID: 1, Kind: "gpu", Name: "gpu1"},
	}}
	// One incompatible device does not poison an artifact that is optimal
	// somewhere.
	eng.SetDeviceVerdicts(artifact, []backend.DeviceVerdict{
		{Device: eng.DeviceList[0], Verdict: backend.VerdictNotSupported},
		{Device: eng.DeviceList[1], Verdict: backend.VerdictOptimal},
	})
	if rec := ResolveArtifact(eng, graph, config.CompileOptions{EnableEPContext: true}); !rec.Valid {
		t.Fatalf("artifact optimal on one device rejected")
	}

	eng.SetVerdict(artifact, backend.VerdictNotSupported)
	if rec := ResolveArtifact(eng, graph, config.CompileOptions{EnableEPContext: true}); rec.Valid {
		t.Fatalf("all-not-supported accepted")
	}
}
