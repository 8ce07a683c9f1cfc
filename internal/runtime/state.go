package runtime

import (
	"fmt"

	"genaid/internal/backend"
)

// State is one in-flight decoding run over a model's sessions. Not safe for
// concurrent use; each request gets its own State.
type State interface {
	// Step runs one decode step. totalLength is the sequence length after
	// this step; nextTokens are the tokens to feed; nextIndices, when the
	// graph declares them, select cache rows. Returns the logits row(s).
	Step(totalLength int32, nextTokens, nextIndices []int32) ([]float32, error)

	// Rewind trims the run back to index tokens. No-op on graphs without
	// rewindable caches.
	Rewind(index int32) error

	// Finalize signals that decoding ended at the given length, letting the
	// session release per-run resources.
	Finalize(length int32) error

	// ClearIO drops all bound inputs and outputs.
	ClearIO()

	// Input returns a bound input tensor by name.
	Input(name string) (backend.NamedTensor, bool)

	// Output returns the last produced output tensor by name.
	Output(name string) (backend.NamedTensor, bool)

	// SetInput binds an extra named input for subsequent Steps.
	SetInput(t backend.NamedTensor)

	// Terminated reports whether a prior Step failed; further Steps return
	// an error without invoking the engine.
	Terminated() bool
}

// baseState carries the lifecycle flags shared by every state kind.
type baseState struct {
	// firstRun distinguishes the prefill step, where graph capture warms up,
	// from subsequent single-token steps.
	firstRun   bool
	terminated bool

	inputs  map[string]backend.NamedTensor
	outputs map[string]backend.NamedTensor
}

func newBaseState() baseState {
	return baseState{
		firstRun: true,
		inputs:   make(map[string]backend.NamedTensor),
		outputs:  make(map[string]backend.NamedTensor),
	}
}

func (s *baseState) Rewind(index int32) error    { return nil }
func (s *baseState) Finalize(length int32) error { return nil }
func (s *baseState) Terminated() bool            { return s.terminated }

func (s *baseState) ClearIO() {
	s.inputs = make(map[string]backend.NamedTensor)
	s.outputs = make(map[string]backend.NamedTensor)
}

func (s *baseState) Input(name string) (backend.NamedTensor, bool) {
	t, ok := s.inputs[name]
	return t, ok
}

func (s *baseState) Output(name string) (backend.NamedTensor, bool) {
	t, ok := s.outputs[name]
	return t, ok
}

func (s *baseState) SetInput(t backend.NamedTensor) { s.inputs[t.Name] = t }

// decoderState drives the primary decoder session. It binds input_ids every
// step, plus total_sequence_length and next_indices when the graph declares
// them.
type decoderState struct {
	baseState
	model *decoderModel
}

func newDecoderState(m *decoderModel) *decoderState {
	return &decoderState{baseState: newBaseState(), model: m}
}

func (s *decoderState) Step(totalLength int32, nextTokens, nextIndices []int32) ([]float32, error) {
	if s.terminated {
		return nil, terminatedError{}
	}
	if len(nextTokens) == 0 {
		return nil, ErrConfig("step requires at least one token")
	}

	info := s.model.Info()
	s.SetInput(backend.NamedTensor{
		Name:  "input_ids",
		Shape: []int64{1, int64(len(nextTokens))},
		Data:  nextTokens,
	})
	if info.HasInput("total_sequence_length") {
		s.SetInput(backend.NamedTensor{
			Name:  "total_sequence_length",
			Shape: []int64{1},
			Data:  []int32{totalLength},
		})
	}
	if info.HasInput("next_indices") && nextIndices != nil {
		s.SetInput(backend.NamedTensor{
			Name:  "next_indices",
			Shape: []int64{int64(len(nextIndices))},
			Data:  nextIndices,
		})
	}

	inputs := make([]backend.NamedTensor, 0, len(s.inputs))
	for _, t := range s.inputs {
		inputs = append(inputs, t)
	}
	outs, err := s.model.primarySession.Run(inputs)
	if err != nil {
		s.terminated = true
		if zlog != nil {
			zlog.Error().Err(err).Str("model", s.model.cfg.Name).Msg("evaluation failed; state terminated")
		}
		return nil, ErrEvaluation(err)
	}
	s.firstRun = false

	for _, t := range outs {
		s.outputs[t.Name] = t
	}
	logits, ok := s.outputs["logits"]
	if !ok {
		s.terminated = true
		return nil, ErrEvaluation(fmt.Errorf("session produced no logits output"))
	}
	data, ok := logits.Data.([]float32)
	if !ok {
		s.terminated = true
		return nil, ErrEvaluation(fmt.Errorf("logits have unexpected element type %T", logits.Data))
	}
	return data, nil
}
