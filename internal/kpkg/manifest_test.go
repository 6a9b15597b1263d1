package kpkg

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest_Minimal(t *testing.T) {
	m, err := ParseManifest([]byte("name = \"demo\"\nversion = \"0.1.0\"\n"))

	require.NoError(t, err)
	assert.Equal(t, "demo", m.Name)
	assert.Equal(t, "0.1.0", m.Version)
	assert.True(t, m.Capabilities.Empty())
}

func TestParseManifest_FullCapabilities(t *testing.T) {
	doc := `
name = "myapp"
version = "1.2.3"

[capabilities.memory]
max_bytes = 8388608

[capabilities.files.read]
paths = ["/etc/config", "/usr/share/myapp"]

[capabilities.network.connect]
hosts = ["api.example.com:443", "10.0.0.1:8080"]
`

	m, err := ParseManifest([]byte(doc))

	require.NoError(t, err)
	require.NotNil(t, m.Capabilities.Memory)
	assert.Equal(t, uint64(8388608), m.Capabilities.Memory.MaxBytes)
	require.NotNil(t, m.Capabilities.Files)
	require.NotNil(t, m.Capabilities.Files.Read)
	assert.Equal(t, []string{"/etc/config", "/usr/share/myapp"}, m.Capabilities.Files.Read.Paths)
	require.NotNil(t, m.Capabilities.Network)
	require.NotNil(t, m.Capabilities.Network.Connect)
	assert.Equal(t, []string{"api.example.com:443", "10.0.0.1:8080"}, m.Capabilities.Network.Connect.Hosts)
}

func TestParseManifest_EmptySubSectionsValid(t *testing.T) {
	// files without read and network without connect grant nothing but
	// are well-formed.
	doc := `
name = "demo"
version = "0.1.0"

[capabilities.files]
[capabilities.network]
`

	m, err := ParseManifest([]byte(doc))

	require.NoError(t, err)
	require.NotNil(t, m.Capabilities.Files)
	assert.Nil(t, m.Capabilities.Files.Read)
	require.NotNil(t, m.Capabilities.Network)
	assert.Nil(t, m.Capabilities.Network.Connect)
}

func TestParseManifest_NotUTF8(t *testing.T) {
	_, err := ParseManifest([]byte{'n', 0xFF, 0xFE, '='})

	assert.ErrorIs(t, err, ErrNotUTF8)
}

func TestParseManifest_Empty(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"zero length", []byte{}},
		{"nil", nil},
		{"spaces", []byte("    ")},
		{"mixed whitespace", []byte(" \t\r\n \n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest(tt.data)

			assert.ErrorIs(t, err, ErrEmptyManifest)
			assert.NotErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestParseManifest_SyntaxError(t *testing.T) {
	// Unterminated string.
	_, err := ParseManifest([]byte("name = \"demo\nversion = \"0.1.0\"\n"))

	assert.ErrorIs(t, err, ErrSyntax)

	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Positive(t, se.Line)
}

func TestParseManifest_MalformedTableHeader(t *testing.T) {
	_, err := ParseManifest([]byte("name = \"a\"\nversion = \"1\"\n[capabilities\n"))

	assert.ErrorIs(t, err, ErrSyntax)
}

func TestParseManifest_UnknownField(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		key  string
	}{
		{
			name: "top level",
			doc:  "name = \"a\"\nversion = \"1\"\nextra_field = true\n",
			key:  "extra_field",
		},
		{
			name: "inside capabilities",
			doc:  "name = \"a\"\nversion = \"1\"\n[capabilities.gpu]\ncores = 2\n",
			key:  "capabilities.gpu",
		},
		{
			name: "inside memory",
			doc:  "name = \"a\"\nversion = \"1\"\n[capabilities.memory]\nmax_bytes = 1\nmin_bytes = 1\n",
			key:  "capabilities.memory.min_bytes",
		},
		{
			name: "inside files",
			doc:  "name = \"a\"\nversion = \"1\"\n[capabilities.files.write]\npaths = []\n",
			key:  "capabilities.files.write",
		},
		{
			name: "inside files.read",
			doc:  "name = \"a\"\nversion = \"1\"\n[capabilities.files.read]\npaths = []\nglobs = []\n",
			key:  "capabilities.files.read.globs",
		},
		{
			name: "inside network",
			doc:  "name = \"a\"\nversion = \"1\"\n[capabilities.network.listen]\nports = []\n",
			key:  "capabilities.network.listen",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.doc))

			assert.ErrorIs(t, err, ErrUnknownField)

			var ue *UnknownFieldError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, tt.key, ue.Key)
		})
	}
}

func TestParseManifest_RequiredFields(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"missing name", "version = \"1\"\n", ErrMissingField},
		{"missing version", "name = \"a\"\n", ErrMissingField},
		{"empty name", "name = \"\"\nversion = \"1\"\n", ErrEmptyField},
		{"blank name", "name = \"   \"\nversion = \"1\"\n", ErrEmptyField},
		{"empty version", "name = \"a\"\nversion = \"\"\n", ErrEmptyField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.doc))

			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseManifest_TypeErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"negative max_bytes", "name = \"a\"\nversion = \"1\"\n[capabilities.memory]\nmax_bytes = -1\n"},
		{"float max_bytes", "name = \"a\"\nversion = \"1\"\n[capabilities.memory]\nmax_bytes = 1.5\n"},
		{"string max_bytes", "name = \"a\"\nversion = \"1\"\n[capabilities.memory]\nmax_bytes = \"1024\"\n"},
		{"non-string path element", "name = \"a\"\nversion = \"1\"\n[capabilities.files.read]\npaths = [1, 2]\n"},
		{"non-string host element", "name = \"a\"\nversion = \"1\"\n[capabilities.network.connect]\nhosts = [true]\n"},
		{"paths not an array", "name = \"a\"\nversion = \"1\"\n[capabilities.files.read]\npaths = \"/etc\"\n"},
		{"capabilities not a table", "name = \"a\"\nversion = \"1\"\ncapabilities = 5\n"},
		{"name not a string", "name = 42\nversion = \"1\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.doc))

			assert.ErrorIs(t, err, ErrBadType)
		})
	}
}

func TestParseManifest_MemoryWithoutMaxBytes(t *testing.T) {
	_, err := ParseManifest([]byte("name = \"a\"\nversion = \"1\"\n[capabilities.memory]\n"))

	assert.ErrorIs(t, err, ErrMissingField)
	assert.ErrorContains(t, err, "capabilities.memory.max_bytes")
}

func TestParseManifest_UnknownKeyBeforeMissingField(t *testing.T) {
	// The schema walk runs over the whole document before required-field
	// checks, so an unknown key wins even when name is absent.
	_, err := ParseManifest([]byte("bogus = 1\nversion = \"1\"\n"))

	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestParseManifest_OddButWellTypedValuesAccepted(t *testing.T) {
	doc := `
name = "demo"
version = "not-semver-at-all"

[capabilities.files.read]
paths = ["relative/path", ""]

[capabilities.network.connect]
hosts = ["not a host at all"]
`

	m, err := ParseManifest([]byte(doc))

	require.NoError(t, err)
	assert.Equal(t, []string{"relative/path", ""}, m.Capabilities.Files.Read.Paths)
	assert.Equal(t, []string{"not a host at all"}, m.Capabilities.Network.Connect.Hosts)
}

func TestManifest_TOMLRoundTrip(t *testing.T) {
	m := &Manifest{
		Name:    "myapp",
		Version: "0.1.0",
		Capabilities: Capabilities{
			Memory: &MemoryCap{MaxBytes: 8388608},
			Files: &FilesCap{
				Read: &FileReadCap{Paths: []string{"/etc/config"}},
			},
			Network: &NetworkCap{
				Connect: &ConnectCap{Hosts: []string{"api.example.com:443"}},
			},
		},
	}

	doc, err := m.TOML()
	require.NoError(t, err)
	assert.Contains(t, doc, `name = "myapp"`)
	assert.Contains(t, doc, "max_bytes = 8388608")

	parsed, err := ParseManifest([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, m, parsed)
}

// randomManifest builds an arbitrary schema-valid manifest from r.
func randomManifest(r *rand.Rand) *Manifest {
	m := &Manifest{
		Name:    fmt.Sprintf("app-%d", r.Intn(1000)),
		Version: fmt.Sprintf("%d.%d.%d", r.Intn(20), r.Intn(20), r.Intn(20)),
	}
	if r.Intn(2) == 0 {
		m.Capabilities.Memory = &MemoryCap{MaxBytes: uint64(r.Int63n(16_000_000) + 1)}
	}
	if r.Intn(2) == 0 {
		m.Capabilities.Files = &FilesCap{}
		if r.Intn(2) == 0 {
			paths := make([]string, r.Intn(4)+1)
			for i := range paths {
				paths[i] = fmt.Sprintf("/etc/conf/%d", r.Intn(100))
			}
			m.Capabilities.Files.Read = &FileReadCap{Paths: paths}
		}
	}
	if r.Intn(2) == 0 {
		m.Capabilities.Network = &NetworkCap{}
		if r.Intn(2) == 0 {
			hosts := make([]string, r.Intn(4)+1)
			for i := range hosts {
				hosts[i] = fmt.Sprintf("host%d.example.com:%d", r.Intn(100), r.Intn(65535)+1)
			}
			m.Capabilities.Network.Connect = &ConnectCap{Hosts: hosts}
		}
	}
	return m
}

func TestManifest_RandomizedRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		m := randomManifest(r)

		doc, err := m.TOML()
		require.NoError(t, err)

		parsed, err := ParseManifest([]byte(doc))
		require.NoError(t, err, "doc:\n%s", doc)
		assert.Equal(t, m, parsed, "doc:\n%s", doc)
	}
}
