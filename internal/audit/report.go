// Package audit inspects unpackaged binaries and syscall traces to
// suggest a capability manifest. It is advisory tooling: nothing here
// runs on untrusted container input, and the suggested manifest is a
// starting point for a human, not a grant.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/kpkg-dev/kpkg-go/internal/kpkg"
)

// DefaultMemoryCeiling is the max_bytes value suggested when nothing
// better is known (128 MiB).
const DefaultMemoryCeiling = 134217728

// Report is the outcome of one audit run.
type Report struct {
	File          string   `json:"file"`
	Source        string   `json:"source"` // "elf" or "trace"
	Arch          string   `json:"arch,omitempty"`
	PIE           bool     `json:"pie"`
	NX            bool     `json:"nx"`
	RELRO         bool     `json:"relro"`
	BindNow       bool     `json:"bind_now"`
	SharedLibs    []string `json:"shared_libs,omitempty"`
	Imports       []string `json:"imports,omitempty"`
	ReadPaths     []string `json:"read_paths,omitempty"`
	WritePaths    []string `json:"write_paths,omitempty"`
	Hosts         []string `json:"hosts,omitempty"`
	NetworkIntent bool     `json:"network_intent"`
}

// FullRELRO reports whether both GNU_RELRO and BIND_NOW are present.
func (r *Report) FullRELRO() bool {
	return r.RELRO && r.BindNow
}

// HasWrites reports whether write-path activity was observed. Write
// capabilities are not modeled by the manifest schema, so any finding
// here is surfaced as a warning.
func (r *Report) HasWrites() bool {
	return len(r.WritePaths) > 0
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}

// SuggestedManifest derives a manifest skeleton from the findings. The
// memory ceiling is a placeholder the operator adjusts; write paths are
// deliberately not carried over since the schema does not model them.
func (r *Report) SuggestedManifest() *kpkg.Manifest {
	m := &kpkg.Manifest{
		Name:    suggestedName(r.File),
		Version: "0.0.0",
		Capabilities: kpkg.Capabilities{
			Memory: &kpkg.MemoryCap{MaxBytes: DefaultMemoryCeiling},
		},
	}
	if len(r.ReadPaths) > 0 {
		m.Capabilities.Files = &kpkg.FilesCap{
			Read: &kpkg.FileReadCap{Paths: r.ReadPaths},
		}
	}
	if len(r.Hosts) > 0 {
		m.Capabilities.Network = &kpkg.NetworkCap{
			Connect: &kpkg.ConnectCap{Hosts: r.Hosts},
		}
	} else if r.NetworkIntent {
		m.Capabilities.Network = &kpkg.NetworkCap{
			Connect: &kpkg.ConnectCap{Hosts: []string{}},
		}
	}
	return m
}

// SuggestedManifestTOML renders the suggested manifest as TOML.
func (r *Report) SuggestedManifestTOML() (string, error) {
	return r.SuggestedManifest().TOML()
}

// Render writes the human-readable summary.
func (r *Report) Render(w io.Writer) {
	if r.Source == "elf" {
		fmt.Fprintln(w, "== ELF Audit ==")
	} else {
		fmt.Fprintln(w, "== Trace Audit ==")
	}
	fmt.Fprintf(w, "File: %s\n", r.File)
	if r.Arch != "" {
		fmt.Fprintf(w, "Arch: %s\n", r.Arch)
	}
	if r.Source == "elf" {
		fmt.Fprintf(w, "PIE : %s\n", yesno(r.PIE))
		fmt.Fprintf(w, "NX  : %s\n", yesno(r.NX))
		fmt.Fprintf(w, "RELRO (GNU_RELRO): %s\n", yesno(r.RELRO))
		fmt.Fprintf(w, "BIND_NOW         : %s\n", yesno(r.BindNow))
		fmt.Fprintf(w, "Full RELRO       : %s\n", yesno(r.FullRELRO()))
	}

	renderList(w, "Shared libs (DT_NEEDED):", r.SharedLibs)
	renderList(w, "Interesting imports:", r.Imports)
	renderList(w, "Read paths:", r.ReadPaths)
	renderList(w, "Write paths:", r.WritePaths)
	renderList(w, "Hosts:", r.Hosts)

	fmt.Fprintf(w, "\nNetwork capability required: %s\n", yesno(r.NetworkIntent))

	manifest, err := r.SuggestedManifestTOML()
	if err == nil {
		fmt.Fprintf(w, "\n== Suggested manifest ==\n%s", manifest)
	}
}

func renderList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

func yesno(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// stringSet collects deduplicated findings; Sorted gives deterministic
// report output.
type stringSet map[string]struct{}

func (s stringSet) Add(v string) { s[v] = struct{}{} }

func (s stringSet) Sorted() []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func suggestedName(path string) string {
	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "app"
	}
	return name
}
