package kpkg

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
)

// Manifest is the validated capability manifest embedded in a container.
type Manifest struct {
	Name         string
	Version      string
	Capabilities Capabilities
}

// Capabilities is the set of scoped permissions a manifest grants. The
// zero value grants nothing.
type Capabilities struct {
	Memory  *MemoryCap
	Files   *FilesCap
	Network *NetworkCap
}

// Empty reports whether no capability is granted.
func (c Capabilities) Empty() bool {
	return c.Memory == nil && c.Files == nil && c.Network == nil
}

// MemoryCap caps the memory the packaged binary may use.
type MemoryCap struct {
	MaxBytes uint64
}

// FilesCap scopes filesystem access.
type FilesCap struct {
	Read *FileReadCap
}

// FileReadCap lists paths the binary may read.
type FileReadCap struct {
	Paths []string
}

// NetworkCap scopes network access.
type NetworkCap struct {
	Connect *ConnectCap
}

// ConnectCap lists "host:port" endpoints the binary may connect to.
type ConnectCap struct {
	Hosts []string
}

// schemaNode declares the allowed keys beneath one table of the
// manifest document. A nil child marks a leaf; a non-nil child must be
// a table in the document. The schema is closed-world: adding a
// capability section means adding it here, nothing else.
type schemaNode map[string]schemaNode

var manifestSchema = schemaNode{
	"name":    nil,
	"version": nil,
	"capabilities": schemaNode{
		"memory":  schemaNode{"max_bytes": nil},
		"files":   schemaNode{"read": schemaNode{"paths": nil}},
		"network": schemaNode{"connect": schemaNode{"hosts": nil}},
	},
}

// ParseManifest deserializes and strictly validates manifest bytes.
// The pipeline fails fast: UTF-8 validity, non-whitespace content, TOML
// syntax, then the closed-schema walk and field-level checks. Values
// that are well-typed but semantically odd (a malformed host string, a
// relative path) are accepted; semantic enforcement is the sandbox's
// job, not the parser's.
func ParseManifest(data []byte) (*Manifest, error) {
	if !utf8.Valid(data) {
		return nil, ErrNotUTF8
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyManifest
	}

	var tree map[string]any
	if _, err := toml.Decode(string(data), &tree); err != nil {
		var perr toml.ParseError
		if errors.As(err, &perr) {
			return nil, &SyntaxError{Line: perr.Position.Line, Msg: perr.Message}
		}
		return nil, &SyntaxError{Msg: err.Error()}
	}

	if err := checkSchema("", tree, manifestSchema); err != nil {
		return nil, err
	}
	return buildManifest(tree)
}

// checkSchema rejects any key not declared for its node, at any depth.
// One recursive rule for the whole document; keys are visited in sorted
// order so the reported violation is deterministic.
func checkSchema(prefix string, tbl map[string]any, node schemaNode) error {
	keys := make([]string, 0, len(tbl))
	for k := range tbl {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := joinKey(prefix, k)
		child, ok := node[k]
		if !ok {
			return &UnknownFieldError{Key: path}
		}
		if child == nil {
			continue
		}
		sub, ok := tbl[k].(map[string]any)
		if !ok {
			return &TypeError{Key: path, Want: "table", Got: tomlTypeName(tbl[k])}
		}
		if err := checkSchema(path, sub, child); err != nil {
			return err
		}
	}
	return nil
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func tomlTypeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case int64:
		return "integer"
	case float64:
		return "float"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "table"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// buildManifest extracts typed fields from a tree that already passed
// the schema walk, so every intermediate node is known to be a table.
func buildManifest(tree map[string]any) (*Manifest, error) {
	name, err := requiredString(tree, "name")
	if err != nil {
		return nil, err
	}
	version, err := requiredString(tree, "version")
	if err != nil {
		return nil, err
	}

	m := &Manifest{Name: name, Version: version}

	raw, ok := tree["capabilities"]
	if !ok {
		return m, nil
	}
	caps := raw.(map[string]any)

	if sub, ok := caps["memory"]; ok {
		mem := sub.(map[string]any)
		max, err := requiredUint(mem, "capabilities.memory", "max_bytes")
		if err != nil {
			return nil, err
		}
		m.Capabilities.Memory = &MemoryCap{MaxBytes: max}
	}
	if sub, ok := caps["files"]; ok {
		files := sub.(map[string]any)
		m.Capabilities.Files = &FilesCap{}
		if rd, ok := files["read"]; ok {
			read := rd.(map[string]any)
			paths, err := requiredStrings(read, "capabilities.files.read", "paths")
			if err != nil {
				return nil, err
			}
			m.Capabilities.Files.Read = &FileReadCap{Paths: paths}
		}
	}
	if sub, ok := caps["network"]; ok {
		net := sub.(map[string]any)
		m.Capabilities.Network = &NetworkCap{}
		if cn, ok := net["connect"]; ok {
			connect := cn.(map[string]any)
			hosts, err := requiredStrings(connect, "capabilities.network.connect", "hosts")
			if err != nil {
				return nil, err
			}
			m.Capabilities.Network.Connect = &ConnectCap{Hosts: hosts}
		}
	}
	return m, nil
}

func requiredString(tbl map[string]any, key string) (string, error) {
	raw, ok := tbl[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", key, ErrMissingField)
	}
	s, ok := raw.(string)
	if !ok {
		return "", &TypeError{Key: key, Want: "string", Got: tomlTypeName(raw)}
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%s: %w", key, ErrEmptyField)
	}
	return s, nil
}

func requiredUint(tbl map[string]any, prefix, key string) (uint64, error) {
	path := joinKey(prefix, key)
	raw, ok := tbl[key]
	if !ok {
		return 0, fmt.Errorf("%s: %w", path, ErrMissingField)
	}
	n, ok := raw.(int64)
	if !ok {
		return 0, &TypeError{Key: path, Want: "integer", Got: tomlTypeName(raw)}
	}
	if n < 0 {
		return 0, &TypeError{Key: path, Want: "unsigned integer", Got: "negative integer"}
	}
	return uint64(n), nil
}

func requiredStrings(tbl map[string]any, prefix, key string) ([]string, error) {
	path := joinKey(prefix, key)
	raw, ok := tbl[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrMissingField)
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, &TypeError{Key: path, Want: "array of strings", Got: tomlTypeName(raw)}
	}
	out := make([]string, 0, len(arr))
	for i, elem := range arr {
		s, ok := elem.(string)
		if !ok {
			return nil, &TypeError{
				Key:  fmt.Sprintf("%s[%d]", path, i),
				Want: "string",
				Got:  tomlTypeName(elem),
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// TOML serializes the manifest back to its document form. Absent
// capability sections are omitted; a present section with no grants
// renders as an empty table.
func (m *Manifest) TOML() (string, error) {
	doc := map[string]any{
		"name":    m.Name,
		"version": m.Version,
	}
	caps := map[string]any{}
	if m.Capabilities.Memory != nil {
		caps["memory"] = map[string]any{"max_bytes": m.Capabilities.Memory.MaxBytes}
	}
	if m.Capabilities.Files != nil {
		files := map[string]any{}
		if m.Capabilities.Files.Read != nil {
			files["read"] = map[string]any{"paths": m.Capabilities.Files.Read.Paths}
		}
		caps["files"] = files
	}
	if m.Capabilities.Network != nil {
		network := map[string]any{}
		if m.Capabilities.Network.Connect != nil {
			network["connect"] = map[string]any{"hosts": m.Capabilities.Network.Connect.Hosts}
		}
		caps["network"] = network
	}
	if len(caps) > 0 {
		doc["capabilities"] = caps
	}

	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(doc); err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	return sb.String(), nil
}

// String implements fmt.Stringer for inspection output.
func (m *Manifest) String() string {
	s, err := m.TOML()
	if err != nil {
		return fmt.Sprintf("manifest %q %q (unserializable: %v)", m.Name, m.Version, err)
	}
	return s
}
