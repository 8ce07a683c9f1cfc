package runtime

import (
	"log"
	"path/filepath"

	"genaid/internal/backend"
	"genaid/internal/common/fsutil"
	"genaid/internal/config"
)

// ArtifactRecord is the outcome of resolving a compiled artifact for one
// graph. Recomputed on every load, never persisted: drivers, toolkits and
// visible devices can change between process runs, so a prior "works"
// verdict is exactly what must not be trusted.
type ArtifactRecord struct {
	// Path is the resolved absolute artifact location, whether or not a
	// file exists there yet.
	Path string
	// Exists reports whether a file is present at Path.
	Exists bool
	// Valid reports whether the existing artifact may be opened as-is.
	Valid bool
}

// DefaultArtifactPath returns the default compiled-artifact location for a
// graph file: contexts/<stem>_<engine>_ctx.onnx next to the source graph.
func DefaultArtifactPath(graphPath, engineName string) string {
	return filepath.Join(filepath.Dir(graphPath), "contexts",
		fsutil.Stem(graphPath)+"_"+engineName+"_ctx.onnx")
}

// artifactPath resolves the candidate artifact location from the compile
// options: the configured ep_context_file_path (relative to the graph's
// directory) when set, the default layout otherwise.
func artifactPath(graphPath string, opts config.CompileOptions, engineName string) string {
	if opts.EPContextFilePath != "" {
		p := opts.EPContextFilePath
		if !filepath.IsAbs(p) {
			p = filepath.Join(filepath.Dir(graphPath), p)
		}
		return p
	}
	return DefaultArtifactPath(graphPath, engineName)
}

// ResolveArtifact determines whether a previously compiled artifact for
// graphPath is usable as-is against the engine's current device set. A
// missing file or a failed validation means the caller must compile.
func ResolveArtifact(eng backend.Engine, graphPath string, opts config.CompileOptions) ArtifactRecord {
	rec := ArtifactRecord{Path: artifactPath(graphPath, opts, eng.Name())}
	if !fsutil.PathExists(rec.Path) {
		return rec
	}
	rec.Exists = true
	rec.Valid = validateArtifact(eng, rec.Path, opts.ForceCompileIfNeeded)
	return rec
}

// validateArtifact queries the engine for per-device compatibility of an
// existing artifact. An artifact with no declared compatibility is never
// trusted. Across devices the best verdict wins: optimal is valid,
// prefer-recompilation is valid only when the caller has not asked to force
// recompilation (accepted with a degraded-performance warning), everything
// else is invalid.
func validateArtifact(eng backend.Engine, artifactPath string, forceCompile bool) bool {
	verdicts, err := eng.Compatibility(artifactPath, eng.Devices())
	if err != nil {
		if zlog != nil {
			zlog.Warn().Str("artifact", artifactPath).Err(err).Msg("compatibility query failed; recompiling")
		}
		cacheInvalidTotal.WithLabelValues("compat_query_failed").Inc()
		return false
	}
	if len(verdicts) == 0 {
		if zlog != nil {
			zlog.Info().Str("artifact", artifactPath).Msg("no compatibility info recorded; recompiling")
		}
		cacheInvalidTotal.WithLabelValues("no_compat_info").Inc()
		return false
	}
	best := backend.VerdictNotSupported
	for _, dv := range verdicts {
		if dv.Verdict > best {
			best = dv.Verdict
		}
	}
	switch best {
	case backend.VerdictOptimal:
		return true
	case backend.VerdictPreferRecompilation:
		if forceCompile {
			cacheInvalidTotal.WithLabelValues("prefer_recompilation").Inc()
			return false
		}
		if zlog != nil {
			zlog.Warn().Str("artifact", artifactPath).
				Msg("using compiled model although recompilation is preferred; performance may be degraded")
		} else {
			log.Printf("warning: using compiled model %s although recompilation is preferred; performance may be degraded", artifactPath)
		}
		return true
	default:
		cacheInvalidTotal.WithLabelValues("not_supported").Inc()
		return false
	}
}
