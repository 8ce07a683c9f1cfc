package manager

import (
	"time"

	"genaid/internal/backend"
	"genaid/internal/runtime"
	"genaid/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultDrainTimeout  = 5 * time.Second
)

// TokenizerFactory builds the tokenizer for a graph model. The default is a
// byte-level tokenizer; real deployments install a vocabulary-backed one.
type TokenizerFactory func(mdl types.Model) (runtime.Tokenizer, error)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Registry      []types.Model
	BudgetMB      int
	MarginMB      int
	DefaultModel  string
	MaxQueueDepth int
	MaxWait       time.Duration
	DrainTimeout  time.Duration

	// Engine names the backend used for graph models; resolved through the
	// backend registry. EngineInstance overrides the lookup when set.
	Engine         string
	EngineOptions  backend.InitOptions
	EngineInstance backend.Engine

	Tokenizers TokenizerFactory

	// llama.cpp configuration for gguf models (no envs; set by callers).
	LlamaCtx     int
	LlamaThreads int

	// LRUPath, when set, persists last-used metadata across restarts.
	LRUPath string

	// Publisher receives lifecycle events; nil drops them.
	Publisher EventPublisher
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:        StateLoading,
		registry:     cfg.Registry,
		budgetMB:     cfg.BudgetMB,
		marginMB:     cfg.MarginMB,
		defaultModel: cfg.DefaultModel,
		instances:    make(map[string]*Instance),
		publisher:    cfg.Publisher,
		tokenizers:   cfg.Tokenizers,
		lruPath:      cfg.LRUPath,
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if m.tokenizers == nil {
		m.tokenizers = func(types.Model) (runtime.Tokenizer, error) { return ByteTokenizer{}, nil }
	}
	// Apply defaults if unset
	if cfg.MaxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	if cfg.DrainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	} else {
		m.drainTimeout = cfg.DrainTimeout
	}

	// Resolve the graph engine. Lookup failure is not fatal: gguf models
	// still serve, and graph loads report dependency-unavailable.
	if cfg.EngineInstance != nil {
		m.engine = cfg.EngineInstance
	} else if cfg.Engine != "" {
		eng, err := backend.Open(cfg.Engine, cfg.EngineOptions)
		if err != nil {
			m.engineErr = err
		} else {
			m.engine = eng
		}
	}

	// In-process llama adapter for gguf models.
	m.adapter = NewLlamaAdapter(cfg.LlamaCtx, cfg.LlamaThreads)

	m.loadLRUMetadata()
	m.startTime = time.Now()
	return m
}
