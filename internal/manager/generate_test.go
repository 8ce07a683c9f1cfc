package manager

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"genaid/internal/backend/backendtest"
	"genaid/pkg/types"
)

// decodeLines parses an NDJSON stream into generic maps.
func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("bad NDJSON line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestGenerateStreamsTokens(t *testing.T) {
	// Byte tokenizer plus an engine that favors last-token+1 yields a
	// deterministic run: "ab" continues c, d, e, f(=EOS 102).
	eng := &backendtest.Engine{VocabSize: 256}
	dir := t.TempDir()
	mdl := newGraphModel(t, dir, "m1", false, 102)
	m := newTestManager(t, eng, []types.Model{mdl}, 0)

	var buf bytes.Buffer
	req := types.GenerateRequest{Model: "m1", Prompt: "ab", Stream: true}
	if err := m.Generate(context.Background(), req, &buf, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	lines := decodeLines(t, &buf)
	if len(lines) < 2 {
		t.Fatalf("expected token lines plus final line, got %d", len(lines))
	}
	final := lines[len(lines)-1]
	if final["done"] != true {
		t.Fatalf("last line is not the final line: %v", final)
	}
	if final["content"] != "cde" {
		t.Fatalf("content = %q, want \"cde\"", final["content"])
	}
	if final["finish_reason"] != "stop" {
		t.Fatalf("finish_reason = %v, want stop", final["finish_reason"])
	}
	var tokens []string
	for _, l := range lines[:len(lines)-1] {
		tokens = append(tokens, l["token"].(string))
	}
	if strings.Join(tokens, "") != "cde" {
		t.Fatalf("streamed tokens %v", tokens)
	}
}

func TestGenerateNonStreaming(t *testing.T) {
	eng := &backendtest.Engine{VocabSize: 256}
	dir := t.TempDir()
	mdl := newGraphModel(t, dir, "m1", false, 102)
	m := newTestManager(t, eng, []types.Model{mdl}, 0)

	var buf bytes.Buffer
	req := types.GenerateRequest{Model: "m1", Prompt: "ab"}
	if err := m.Generate(context.Background(), req, &buf, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("non-streaming produced %d lines, want only the final line", len(lines))
	}
	if lines[0]["content"] != "cde" {
		t.Fatalf("content = %q", lines[0]["content"])
	}
}

func TestGenerateStopSequence(t *testing.T) {
	eng := &backendtest.Engine{VocabSize: 256}
	dir := t.TempDir()
	mdl := newGraphModel(t, dir, "m1", false, 250)
	m := newTestManager(t, eng, []types.Model{mdl}, 0)

	var buf bytes.Buffer
	req := types.GenerateRequest{Model: "m1", Prompt: "ab", Stop: []string{"d"}}
	if err := m.Generate(context.Background(), req, &buf, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	lines := decodeLines(t, &buf)
	final := lines[len(lines)-1]
	if final["content"] != "cd" {
		t.Fatalf("content = %q, want generation cut at stop sequence", final["content"])
	}
	if final["finish_reason"] != "stop" {
		t.Fatalf("finish_reason = %v", final["finish_reason"])
	}
}

func TestGenerateMaxLength(t *testing.T) {
	eng := &backendtest.Engine{VocabSize: 256}
	dir := t.TempDir()
	mdl := newGraphModel(t, dir, "m1", false, 250)
	m := newTestManager(t, eng, []types.Model{mdl}, 0)

	var buf bytes.Buffer
	req := types.GenerateRequest{Model: "m1", Prompt: "ab", MaxLength: 5}
	if err := m.Generate(context.Background(), req, &buf, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	lines := decodeLines(t, &buf)
	final := lines[len(lines)-1]
	// 2 prompt + 3 generated tokens reach max_length 5.
	if final["content"] != "cde" {
		t.Fatalf("content = %q", final["content"])
	}
	if final["finish_reason"] != "length" {
		t.Fatalf("finish_reason = %v, want length", final["finish_reason"])
	}
}

func TestGenerateNoModelNoDefault(t *testing.T) {
	m := newTestManager(t, &backendtest.Engine{}, nil, 0)
	err := m.Generate(context.Background(), types.GenerateRequest{Prompt: "hi"}, &bytes.Buffer{}, nil)
	if err == nil || !IsModelNotFound(err) {
		t.Fatalf("expected model-not-found, got %v", err)
	}
}

func TestGenerateGGUFWithoutLlamaBuild(t *testing.T) {
	if llamaBuilt {
		t.Skip("llama build tag set")
	}
	dir := t.TempDir()
	ggufPath := dir + "/m.gguf"
	if err := writeTestFile(ggufPath, "GGUF"); err != nil {
		t.Fatalf("write: %v", err)
	}
	mdl := types.Model{ID: "m.gguf", Name: "m.gguf", Path: ggufPath, Kind: types.KindGGUF}
	m := newTestManager(t, &backendtest.Engine{}, []types.Model{mdl}, 0)

	err := m.Generate(context.Background(), types.GenerateRequest{Model: "m.gguf", Prompt: "hi"}, &bytes.Buffer{}, nil)
	if err == nil || !IsDependencyUnavailable(err) {
		t.Fatalf("expected dependency-unavailable, got %v", err)
	}
}

func TestGenerateUsageAccounting(t *testing.T) {
	eng := &backendtest.Engine{VocabSize: 256}
	dir := t.TempDir()
	mdl := newGraphModel(t, dir, "m1", false, 102)
	m := newTestManager(t, eng, []types.Model{mdl}, 0)

	var buf bytes.Buffer
	if err := m.Generate(context.Background(), types.GenerateRequest{Model: "m1", Prompt: "ab"}, &buf, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	lines := decodeLines(t, &buf)
	usage := lines[len(lines)-1]["usage"].(map[string]any)
	if usage["prompt_tokens"].(float64) != 2 {
		t.Fatalf("prompt_tokens = %v", usage["prompt_tokens"])
	}
	// c, d, e plus the EOS token.
	if usage["completion_tokens"].(float64) != 4 {
		t.Fatalf("completion_tokens = %v", usage["completion_tokens"])
	}
}
