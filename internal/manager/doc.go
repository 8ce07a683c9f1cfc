// Package manager provides lifecycle, admission, and generation coordination
// for model instances. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: internal state types (State, Instance, Snapshot).
//   - errors.go: error types and helpers (IsTooBusy, IsModelNotFound).
//   - helpers.go: small utilities (model lookup, memory estimation).
//   - admission.go: per-instance queueing and generation admission.
//   - ensure.go: EnsureInstance lifecycle and loading.
//   - evict.go: eviction logic to fit within the memory budget.
//   - generate.go: generation API entry point and NDJSON streaming.
//   - status.go: Status/Snapshot reporting helpers.
//   - ops.go: async operations (Switch).
//
// Two model kinds are served. Graph models (a directory with a genai_config
// document) run through the backend engine configured at construction, with
// ahead-of-time compiled artifacts reused across loads when the engine
// validates them. gguf models run through the in-process llama adapter,
// enabled with `-tags=llama`; a no-CGO stub refuses gguf inference when the
// tag is not set (files: adapter_llama.go, adapter_llama_stub.go,
// llama_cgo.go).
//
// External packages should treat this package as the orchestration layer and
// use public methods only (New/NewWithConfig, Ready, ListModels, Status,
// Generate, Unload). Internal types are subject to change.
package manager
