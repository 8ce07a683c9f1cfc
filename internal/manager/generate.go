package manager

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"genaid/internal/runtime"
	"genaid/pkg/types"
)

// Generate centralizes generation behavior. It ensures the model instance
// exists, runs the decode loop (graph models) or the llama adapter (gguf
// models), and streams NDJSON token lines to the provided writer, ending
// with a final summary line.
func (m *Manager) Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flusher func()) error {
	// Resolve target model id
	modelID := req.Model
	if modelID == "" {
		modelID = m.defaultModel
		if modelID == "" {
			// No model specified and no default configured
			return modelNotFoundError{id: "(unspecified)"}
		}
	}
	if err := m.EnsureInstance(ctx, modelID); err != nil {
		return err
	}
	// Admission: per-instance FIFO queue, single in-flight
	release, err := m.beginGeneration(ctx, modelID)
	if err != nil {
		return err
	}
	defer release()

	m.mu.RLock()
	inst := m.instances[modelID]
	m.mu.RUnlock()
	if inst == nil {
		return ErrModelNotFound(modelID)
	}
	if inst.Kind == types.KindGraph {
		return m.generateGraph(ctx, inst, req, w, flusher)
	}
	return m.generateGGUF(ctx, req, modelID, w, flusher)
}

// generateGraph runs greedy decoding over the instance's loaded model.
func (m *Manager) generateGraph(ctx context.Context, inst *Instance, req types.GenerateRequest, w io.Writer, flusher func()) error {
	model, tok := inst.model, inst.tok
	if model == nil {
		return ErrDependencyUnavailable("graph model not loaded: " + inst.ID)
	}

	params := runtime.NewGeneratorParams(model.Config())
	if req.MaxLength > 0 && req.MaxLength < params.MaxLength {
		params.MaxLength = req.MaxLength
	}
	g, err := runtime.NewGenerator(model, params)
	if err != nil {
		return err
	}
	defer g.Finalize()

	promptTokens, err := tok.Encode(req.Prompt)
	if err != nil {
		return err
	}
	if err := g.AppendTokens(promptTokens); err != nil {
		return err
	}

	var content strings.Builder
	finishReason := "length"
	completion := 0
	for !g.IsDone() {
		if err := ctx.Err(); err != nil {
			return err
		}
		tokID, err := g.GenerateNextToken()
		if err != nil {
			return err
		}
		completion++
		if isEOSToken(model.Config().EOSTokenIDs, tokID) {
			finishReason = "stop"
			break
		}
		piece, err := tok.Decode([]int32{tokID})
		if err != nil {
			return err
		}
		content.WriteString(piece)
		if req.Stream {
			if _, e := w.Write(tokenLineJSON(piece)); e != nil {
				return e
			}
			if flusher != nil {
				flusher()
			}
		}
		if stopHit(content.String(), req.Stop) {
			finishReason = "stop"
			break
		}
	}

	end := map[string]any{
		"done":          true,
		"content":       content.String(),
		"finish_reason": finishReason,
		"usage": Usage{
			PromptTokens:     len(promptTokens),
			CompletionTokens: completion,
			TotalTokens:      len(promptTokens) + completion,
		},
	}
	jb, _ := json.Marshal(end)
	if _, err := w.Write(append(jb, '\n')); err != nil {
		return err
	}
	if flusher != nil {
		flusher()
	}
	return nil
}

// generateGGUF streams through the llama adapter.
func (m *Manager) generateGGUF(ctx context.Context, req types.GenerateRequest, modelID string, w io.Writer, flusher func()) error {
	if m.adapter == nil {
		return ErrDependencyUnavailable("llama adapter not initialized")
	}
	mdl, ok := m.getModelByID(modelID)
	if !ok || strings.TrimSpace(mdl.Path) == "" {
		return ErrModelNotFound(modelID)
	}
	params := InferParams{
		MaxTokens: req.MaxLength,
		Stop:      req.Stop,
	}
	sess, err := m.adapter.Start(mdl.Path, params)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	var b strings.Builder
	onTok := func(tok string) error {
		b.WriteString(tok)
		if !req.Stream {
			return nil
		}
		if _, e := w.Write(tokenLineJSON(tok)); e != nil {
			return e
		}
		if flusher != nil {
			flusher()
		}
		return nil
	}
	final, err := sess.Generate(ctx, req.Prompt, onTok)
	if err != nil {
		return err
	}
	content := final.Content
	if content == "" {
		content = b.String()
	}
	end := map[string]any{
		"done":          true,
		"content":       content,
		"finish_reason": final.FinishReason,
		"usage":         final.Usage,
	}
	jb, _ := json.Marshal(end)
	if _, err := w.Write(append(jb, '\n')); err != nil {
		return err
	}
	if flusher != nil {
		flusher()
	}
	return nil
}

// tokenLineJSON formats a token NDJSON line using json.Marshal for correctness.
func tokenLineJSON(tok string) []byte {
	type tokenMsg struct {
		Token string `json:"token"`
	}
	b, _ := json.Marshal(tokenMsg{Token: tok})
	return append(b, '\n')
}

func isEOSToken(eos []int32, tok int32) bool {
	for _, e := range eos {
		if tok == e {
			return true
		}
	}
	return false
}

// stopHit reports whether the accumulated content ends in any stop sequence.
func stopHit(content string, stops []string) bool {
	for _, s := range stops {
		if s != "" && strings.HasSuffix(content, s) {
			return true
		}
	}
	return false
}
