// Package runtime loads inference-graph models, manages their compiled
// artifacts, and drives per-request decoding state. A Model owns the engine
// sessions for its graphs; States created from it share those sessions but
// carry their own mutable run inputs.
package runtime

import (
	"fmt"
	"path/filepath"
	"sync"

	"genaid/internal/backend"
	"genaid/internal/config"
)

// Model is a loaded inference model: its parsed config, the sessions of its
// primary and pipeline graphs, and the catalogue of their tensor names.
// A Model is immutable after construction and safe for concurrent reads;
// per-request mutability lives in the States it creates.
type Model interface {
	// CreateState returns a fresh decoding state bound to this model's
	// sessions.
	CreateState() (State, error)

	// EnsureCompiledOrOriginal resolves which graph file to open for one
	// graph: the validated compiled artifact when one exists, a freshly
	// compiled one when compilation is enabled and needed, or the original
	// file. isPrimary additionally runs the same resolution for every
	// pipeline graph.
	EnsureCompiledOrOriginal(graphID, filename string, sopts config.SessionOptions, isPrimary bool, copts *config.CompileOptions) (string, error)

	// SessionOptions returns the session options the named graph was
	// opened with.
	SessionOptions(graphID string) (config.SessionOptions, error)

	// PipelineCompiledModelPath returns the compiled artifact path recorded
	// for a pipeline graph. ok is false when the graph runs from its
	// original file.
	PipelineCompiledModelPath(graphID string) (string, bool)

	// CompiledPaths returns every compiled artifact in use, keyed by graph
	// ID, the primary graph included.
	CompiledPaths() map[string]string

	// Info is the merged input/output catalogue across all sessions.
	Info() *SessionInfo

	// Config returns the parsed model configuration.
	Config() *config.ModelConfig

	// Close releases every session.
	Close() error
}

// primaryGraphID names the decoder graph in session tables and metrics.
const primaryGraphID = "decoder"

// ModelOption adjusts model construction.
type ModelOption func(*decoderModel)

// WithModelData supplies in-memory graph bytes for the named graph, used as
// the compile input instead of re-reading the file.
func WithModelData(graphID string, data []byte) ModelOption {
	return func(m *decoderModel) {
		if m.modelData == nil {
			m.modelData = make(map[string][]byte)
		}
		m.modelData[graphID] = data
	}
}

// NewModel loads the model rooted at dir against eng. The config's type
// selects the implementation; only decoder-family models exist today.
func NewModel(eng backend.Engine, dir string, cfg *config.ModelConfig, opts ...ModelOption) (Model, error) {
	switch cfg.Type {
	case "", "decoder":
		return newDecoderModel(eng, dir, cfg, opts...)
	default:
		return nil, ErrConfig(fmt.Sprintf("unsupported model type: %q", cfg.Type))
	}
}

type decoderModel struct {
	eng backend.Engine
	dir string
	cfg *config.ModelConfig

	info *SessionInfo

	mu               sync.Mutex
	primarySession   backend.Session
	pipelineSessions map[string]backend.Session
	// pipelineSessionOpts records the options each pipeline graph was
	// opened with, keyed by graph ID; primaryGraphID maps the decoder's.
	sessionOpts map[string]config.SessionOptions
	// pipelineCompiledPaths maps pipeline graph IDs to compiled artifact
	// paths. Only paths that exist on disk are ever recorded here.
	pipelineCompiledPaths map[string]string
	primaryCompiledPath   string

	modelData map[string][]byte
	closed    bool
}

func newDecoderModel(eng backend.Engine, dir string, cfg *config.ModelConfig, opts ...ModelOption) (*decoderModel, error) {
	m := &decoderModel{
		eng:                   eng,
		dir:                   dir,
		cfg:                   cfg,
		info:                  NewSessionInfo(),
		pipelineSessions:      make(map[string]backend.Session),
		sessionOpts:           make(map[string]config.SessionOptions),
		pipelineCompiledPaths: make(map[string]string),
	}
	for _, o := range opts {
		o(m)
	}

	path, err := m.EnsureCompiledOrOriginal(primaryGraphID, cfg.Decoder.Filename, cfg.Decoder.SessionOptions, true, cfg.Decoder.CompileOptions)
	if err != nil {
		return nil, err
	}
	sess, err := eng.OpenSession(path, mapSessionOptions(cfg.Decoder.SessionOptions))
	if err != nil {
		return nil, ErrLoad(path, err)
	}
	m.primarySession = sess
	m.sessionOpts[primaryGraphID] = cfg.Decoder.SessionOptions
	m.info.Add(sess)

	for _, pg := range cfg.Pipeline {
		ppath := filepath.Join(dir, pg.Filename)
		if cp, ok := m.pipelineCompiledPaths[pg.ID]; ok {
			ppath = cp
		}
		psess, err := eng.OpenSession(ppath, mapSessionOptions(pg.SessionOptions))
		if err != nil {
			m.Close()
			return nil, ErrLoad(ppath, err)
		}
		m.pipelineSessions[pg.ID] = psess
		m.sessionOpts[pg.ID] = pg.SessionOptions
		m.info.Add(psess)
	}

	if zlog != nil {
		zlog.Info().Str("model", cfg.Name).Str("dir", dir).
			Int("pipeline_graphs", len(cfg.Pipeline)).Msg("model loaded")
	}
	return m, nil
}

// EnsureCompiledOrOriginal implements the compile-or-reuse decision for one
// graph. With compilation disabled (nil options or enable_ep_context=false)
// the original file path is returned untouched and nothing else happens.
// Otherwise an existing artifact that validates against the current device
// set is reused; anything else triggers a compile whose failure is fatal.
func (m *decoderModel) EnsureCompiledOrOriginal(graphID, filename string, sopts config.SessionOptions, isPrimary bool, copts *config.CompileOptions) (string, error) {
	graphPath := filepath.Join(m.dir, filename)
	if copts == nil || !copts.EnableEPContext {
		if isPrimary {
			if err := m.ensurePipeline(); err != nil {
				return "", err
			}
		}
		return graphPath, nil
	}

	rec := ResolveArtifact(m.eng, graphPath, *copts)
	path := rec.Path
	switch {
	case rec.Exists && rec.Valid:
		cacheHitsTotal.WithLabelValues(graphID).Inc()
		if zlog != nil {
			zlog.Debug().Str("graph", graphID).Str("artifact", rec.Path).Msg("reusing compiled model")
		}
	default:
		out, err := compileGraph(m.eng, graphID, graphPath, m.modelData[graphID], *copts)
		if err != nil {
			return "", err
		}
		path = out
	}

	if isPrimary {
		m.mu.Lock()
		m.primaryCompiledPath = path
		m.mu.Unlock()
		if err := m.ensurePipeline(); err != nil {
			return "", err
		}
	} else if graphID != primaryGraphID {
		m.mu.Lock()
		m.pipelineCompiledPaths[graphID] = path
		m.mu.Unlock()
	}
	return path, nil
}

// ensurePipeline runs the compile-or-reuse decision for every pipeline
// graph. Graphs without compilation enabled leave no table entry and run
// from their original files.
func (m *decoderModel) ensurePipeline() error {
	for _, pg := range m.cfg.Pipeline {
		if _, err := m.EnsureCompiledOrOriginal(pg.ID, pg.Filename, pg.SessionOptions, false, pg.CompileOptions); err != nil {
			return err
		}
	}
	return nil
}

func (m *decoderModel) CreateState() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrConfig("model is closed")
	}
	return newDecoderState(m), nil
}

func (m *decoderModel) SessionOptions(graphID string) (config.SessionOptions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	so, ok := m.sessionOpts[graphID]
	if !ok {
		return config.SessionOptions{}, fmt.Errorf("unknown graph: %s", graphID)
	}
	return so, nil
}

func (m *decoderModel) PipelineCompiledModelPath(graphID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pipelineCompiledPaths[graphID]
	return p, ok
}

func (m *decoderModel) CompiledPaths() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.pipelineCompiledPaths)+1)
	if m.primaryCompiledPath != "" {
		out[primaryGraphID] = m.primaryCompiledPath
	}
	for id, p := range m.pipelineCompiledPaths {
		out[id] = p
	}
	return out
}

func (m *decoderModel) Info() *SessionInfo { return m.info }

func (m *decoderModel) Config() *config.ModelConfig { return m.cfg }

func (m *decoderModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	var first error
	if m.primarySession != nil {
		if err := m.primarySession.Close(); err != nil && first == nil {
			first = err
		}
	}
	for _, s := range m.pipelineSessions {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// mapSessionOptions translates config-level session options to the engine's.
func mapSessionOptions(so config.SessionOptions) backend.SessionOptions {
	out := backend.SessionOptions{
		GraphOptimizationLevel: so.GraphOptimizationLevel,
		IntraOpNumThreads:      so.IntraOpNumThreads,
		LogSeverityLevel:       so.LogSeverityLevel,
		EnableGraphCapture:     so.EnableGraphCapture,
	}
	for _, p := range so.ExecutionProviders {
		out.Providers = append(out.Providers, backend.Provider{Name: p.Name, Options: p.Options})
	}
	return out
}
