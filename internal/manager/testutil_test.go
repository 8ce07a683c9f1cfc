package manager

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"genaid/internal/backend/backendtest"
	"genaid/pkg/types"
)

func writeTestFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func sleepMs(n int) { time.Sleep(time.Duration(n) * time.Millisecond) }

// newGraphModel lays out a graph model directory on disk and returns its
// registry entry. eos is the token id that ends generation.
func newGraphModel(t *testing.T, root, id string, compile bool, eos int32) types.Model {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "model.onnx"), []byte("graph "+id), 0o644); err != nil {
		t.Fatalf("write graph: %v", err)
	}
	compileOpts := ""
	if compile {
		compileOpts = `, "compile_options": {"enable_ep_context": true}`
	}
	cfg := fmt.Sprintf(`{
  "name": %q,
  "decoder": {"filename": "model.onnx"%s},
  "eos_token_ids": [%d],
  "max_length": 64
}`, id, compileOpts, eos)
	if err := os.WriteFile(filepath.Join(dir, "genai_config.json"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return types.Model{ID: id, Name: id, Path: dir, Kind: types.KindGraph}
}

// newTestManager builds a manager over the given models with a fake engine
// injected and a byte tokenizer.
func newTestManager(t *testing.T, eng *backendtest.Engine, models []types.Model, budgetMB int) *Manager {
	t.Helper()
	m := NewWithConfig(ManagerConfig{
		Registry:       models,
		BudgetMB:       budgetMB,
		EngineInstance: eng,
	})
	t.Cleanup(func() { m.Close() })
	return m
}
