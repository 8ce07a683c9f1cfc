package runtime

import (
	"genaid/internal/config"
)

// Tokenizer converts between text and token IDs. Implementations come from
// the serving layer; the generation loop only needs the two directions.
type Tokenizer interface {
	Encode(text string) ([]int32, error)
	Decode(tokens []int32) (string, error)
}

// GeneratorParams bound one generation run.
type GeneratorParams struct {
	MaxLength   int
	BatchSize   int
	EOSTokenIDs []int32
	PadTokenID  int32
}

// NewGeneratorParams derives default parameters from a model config.
func NewGeneratorParams(cfg *config.ModelConfig) GeneratorParams {
	maxLen := cfg.MaxLength
	if maxLen <= 0 {
		maxLen = 2048
	}
	return GeneratorParams{
		MaxLength:   maxLen,
		BatchSize:   1,
		EOSTokenIDs: append([]int32(nil), cfg.EOSTokenIDs...),
		PadTokenID:  cfg.PadTokenID,
	}
}

// Generator drives greedy token-by-token decoding over one State.
type Generator struct {
	params GeneratorParams
	state  State

	sequence []int32
	// pending are tokens appended but not yet fed to the state.
	pending []int32
	done    bool
}

// NewGenerator creates a generator over a fresh state of m.
func NewGenerator(m Model, params GeneratorParams) (*Generator, error) {
	if params.MaxLength <= 0 {
		return nil, ErrConfig("max_length must be positive")
	}
	st, err := m.CreateState()
	if err != nil {
		return nil, err
	}
	return &Generator{params: params, state: st}, nil
}

// AppendTokens adds prompt tokens to feed on the next step.
func (g *Generator) AppendTokens(tokens []int32) error {
	if g.done {
		return ErrConfig("generation already finished")
	}
	if len(g.sequence)+len(tokens) > g.params.MaxLength {
		return ErrConfig("prompt exceeds max_length")
	}
	g.sequence = append(g.sequence, tokens...)
	g.pending = append(g.pending, tokens...)
	return nil
}

// GenerateNextToken runs one decode step over the not-yet-fed tokens and
// greedily picks the next token.
func (g *Generator) GenerateNextToken() (int32, error) {
	if g.done {
		return 0, ErrConfig("generation already finished")
	}
	if len(g.pending) == 0 {
		return 0, ErrConfig("no tokens to decode")
	}
	logits, err := g.state.Step(int32(len(g.sequence)), g.pending, nil)
	if err != nil {
		g.done = true
		return 0, err
	}
	next := argmax(logits)
	g.sequence = append(g.sequence, next)
	g.pending = []int32{next}
	if g.isEOS(next) || len(g.sequence) >= g.params.MaxLength {
		g.done = true
	}
	return next, nil
}

// IsDone reports whether generation hit EOS, max length, or a failure.
func (g *Generator) IsDone() bool { return g.done }

// Sequence returns the tokens accumulated so far, prompt included.
func (g *Generator) Sequence() []int32 {
	return append([]int32(nil), g.sequence...)
}

// Rewind trims the sequence back to length index and rewinds the state.
func (g *Generator) Rewind(index int32) error {
	if index < 0 || int(index) > len(g.sequence) {
		return ErrConfig("rewind index out of range")
	}
	if err := g.state.Rewind(index); err != nil {
		return err
	}
	g.sequence = g.sequence[:index]
	g.pending = nil
	g.done = false
	return nil
}

// Finalize ends the run and releases per-run session resources.
func (g *Generator) Finalize() error {
	g.done = true
	return g.state.Finalize(int32(len(g.sequence)))
}

func (g *Generator) isEOS(tok int32) bool {
	for _, e := range g.params.EOSTokenIDs {
		if tok == e {
			return true
		}
	}
	return false
}

func argmax(logits []float32) int32 {
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	return int32(best)
}
