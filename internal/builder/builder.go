// Package builder composes KPKG containers from a staging directory.
package builder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kpkg-dev/kpkg-go/internal/kpkg"
	"github.com/kpkg-dev/kpkg-go/internal/utils"
)

// Input file names expected in the staging directory.
const (
	BinaryFileName   = "binary"
	ManifestFileName = ".kpkg.toml"
)

// Options configures a Build run.
type Options struct {
	// Input is the staging directory holding "binary" and ".kpkg.toml".
	Input string
	// Output is the container file to write.
	Output string
	Logger *utils.Logger
}

// Result summarizes a successful build.
type Result struct {
	Output       string
	ManifestSize int
	BinarySize   int
	TotalSize    int
}

// Build reads the staging directory, validates the manifest, and writes
// the composed container. The manifest is validated with the same
// parser the loader uses, so the tool never emits a container its own
// loader would reject.
func Build(opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = utils.NewDefaultLogger()
	}
	log = log.WithComponent("builder")

	binaryPath := filepath.Join(opts.Input, BinaryFileName)
	manifestPath := filepath.Join(opts.Input, ManifestFileName)

	binary, err := os.ReadFile(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read binary at %s: %w", binaryPath, err)
	}
	manifest, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest at %s: %w", manifestPath, err)
	}

	m, err := kpkg.ParseManifest(manifest)
	if err != nil {
		return nil, fmt.Errorf("manifest %s is invalid: %w", manifestPath, err)
	}
	log.Debug().Str("name", m.Name).Str("version", m.Version).Msg("Manifest validated")

	container := kpkg.BuildContainer(manifest, binary)

	if err := utils.EnsureDir(opts.Output); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(opts.Output, container, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", opts.Output, err)
	}

	log.Info().
		Str("output", opts.Output).
		Int("manifest_size", len(manifest)).
		Int("binary_size", len(binary)).
		Msg("Container created")

	return &Result{
		Output:       opts.Output,
		ManifestSize: len(manifest),
		BinarySize:   len(binary),
		TotalSize:    len(container),
	}, nil
}
