package runtime

import (
	"fmt"
	"os"
	"path/filepath"

	"genaid/internal/backend"
	"genaid/internal/common/fsutil"
	"genaid/internal/config"
)

// compileGraph ahead-of-time compiles one graph and publishes the artifact
// at its resolved location. data, when non-nil, is used as the compilation
// input instead of re-reading graphPath from disk.
//
// The artifact is written to a sibling temp file and renamed into place on
// success, so a crashed or failed compile can never leave a partial file
// where the resolver would find it. No cross-process file locking is done;
// two racing writers both succeed and the loser replaces an equivalent
// artifact.
func compileGraph(eng backend.Engine, graphID, graphPath string, data []byte, opts config.CompileOptions) (string, error) {
	if err := checkCompileOptions(graphPath, data, opts); err != nil {
		return "", err
	}
	outPath := artifactPath(graphPath, opts, eng.Name())
	if err := fsutil.EnsureParentDir(outPath); err != nil {
		return "", ErrCompile(graphID, err)
	}

	tmp := fmt.Sprintf("%s.tmp.%d", outPath, os.Getpid())
	directives := buildDirectives(graphPath, opts, tmp)
	in := backend.CompileInput{Path: graphPath, Data: data}
	if err := eng.Compile(in, directives); err != nil {
		_ = os.Remove(tmp)
		return "", ErrCompile(graphID, err)
	}
	if err := fsutil.ReplaceFile(tmp, outPath); err != nil {
		_ = os.Remove(tmp)
		return "", ErrCompile(graphID, err)
	}

	compilesTotal.WithLabelValues(graphID).Inc()
	if zlog != nil {
		zlog.Info().Str("graph", graphID).Str("artifact", outPath).Msg("compiled model")
	}
	return outPath, nil
}

// checkCompileOptions rejects option combinations that are caller errors,
// before any engine call. Embedding the compiled context in the output file
// is incompatible with models above the external-initializer threshold.
func checkCompileOptions(graphPath string, data []byte, opts config.CompileOptions) error {
	if opts.EPContextEmbedMode && opts.ExternalInitializersSizeThreshold > 0 {
		size := int64(len(data))
		if data == nil {
			size = fsutil.FileSize(graphPath)
		}
		if size > opts.ExternalInitializersSizeThreshold {
			return ErrConfig(fmt.Sprintf(
				"ep_context_embed_mode is not allowed for models over %d bytes (model is %d bytes)",
				opts.ExternalInitializersSizeThreshold, size))
		}
	}
	return nil
}

// buildDirectives maps compile options to engine directives. Relative side
// file paths resolve against the graph's directory, like the artifact path.
func buildDirectives(graphPath string, opts config.CompileOptions, outputPath string) backend.CompileDirectives {
	extPath := opts.ExternalInitializersFilePath
	if extPath != "" && !filepath.IsAbs(extPath) {
		extPath = filepath.Join(filepath.Dir(graphPath), extPath)
	}
	return backend.CompileDirectives{
		OutputPath:                        outputPath,
		EmbedContext:                      opts.EPContextEmbedMode,
		GraphOptimizationLevel:            opts.GraphOptimizationLevel,
		Flags:                             opts.Flags,
		ExternalInitializersPath:          extPath,
		ExternalInitializersSizeThreshold: opts.ExternalInitializersSizeThreshold,
	}
}
