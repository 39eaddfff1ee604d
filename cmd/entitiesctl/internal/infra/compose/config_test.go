package compose

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeComposeFile writes content to a temp file and returns its path.
func writeComposeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docker-compose.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeComposeFile(t, "services: [this is: not valid\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrParse)
}

func TestLoad_ParsesServices(t *testing.T) {
	path := writeComposeFile(t, `
services:
  db:
    image: mysql:8
    ports:
      - "3307:3306"
    environment:
      MYSQL_USER: ollama
      MYSQL_DATABASE: cosmic_catalyst
  api:
    ports:
      - "9000:9000"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Services, 2)
	assert.Contains(t, cfg.Services, "db")
}

func TestHostPort_PortForms(t *testing.T) {
	tests := []struct {
		name      string
		ports     string
		container int
		wantHost  string
		wantOK    bool
	}{
		{"container only has no host mapping", `["3306"]`, 3306, "", false},
		{"host colon container", `["3307:3306"]`, 3306, "3307", true},
		{"ip host container", `["127.0.0.1:3307:3306"]`, 3306, "3307", true},
		{"bare integer scalar has no host mapping", `[3306]`, 3306, "", false},
		{"protocol suffix", `["3307:3306/tcp"]`, 3306, "3307", true},
		{"no match", `["9000:9000"]`, 3306, "", false},
		{"range skipped", `["8000-8010:8000-8010"]`, 8000, "", false},
		{"first match wins", `["3307:3306", "3308:3306"]`, 3306, "3307", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeComposeFile(t, "services:\n  db:\n    ports: "+tt.ports+"\n")
			cfg, err := Load(path)
			require.NoError(t, err)

			host, ok := cfg.HostPort("db", tt.container)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantHost, host)
		})
	}
}

func TestHostPort_UnknownService(t *testing.T) {
	cfg := &File{Services: map[string]Service{}}
	_, ok := cfg.HostPort("db", 3306)
	assert.False(t, ok)
}

func TestEnvValue_MappingForm(t *testing.T) {
	path := writeComposeFile(t, `
services:
  db:
    environment:
      MYSQL_USER: ollama
      MYSQL_PASSWORD: "p@ss word"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	user, ok := cfg.EnvValue("db", "MYSQL_USER")
	assert.True(t, ok)
	assert.Equal(t, "ollama", user)

	pass, ok := cfg.EnvValue("db", "MYSQL_PASSWORD")
	assert.True(t, ok)
	assert.Equal(t, "p@ss word", pass)

	_, ok = cfg.EnvValue("db", "ABSENT")
	assert.False(t, ok)
}

func TestEnvValue_ListForm(t *testing.T) {
	path := writeComposeFile(t, `
services:
  db:
    environment:
      - MYSQL_USER=ollama
      - MYSQL_DATABASE=cosmic_catalyst
      - PASSTHROUGH_ONLY
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	user, ok := cfg.EnvValue("db", "MYSQL_USER")
	assert.True(t, ok)
	assert.Equal(t, "ollama", user)

	// Entries without '=' declare pass-through vars and are skipped.
	_, ok = cfg.EnvValue("db", "PASSTHROUGH_ONLY")
	assert.False(t, ok)
}

func TestEnvValue_UnknownService(t *testing.T) {
	cfg := &File{Services: map[string]Service{}}
	_, ok := cfg.EnvValue("ghost", "KEY")
	assert.False(t, ok)
}

func TestSplitPortSpec_Malformed(t *testing.T) {
	for _, spec := range []string{"", "3306", "abc:3306", "3307:abc", "0:3306", "70000:3306", "a:b:c:d"} {
		_, _, ok := splitPortSpec(spec)
		assert.False(t, ok, "spec %q should be rejected", spec)
	}
}

func TestLoad_LongFormPortsTolerated(t *testing.T) {
	path := writeComposeFile(t, `
services:
  db:
    ports:
      - target: 3306
        published: 3307
      - "3308:3306"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	// The mapping entry decodes empty and is skipped; the scalar still works.
	host, ok := cfg.HostPort("db", 3306)
	assert.True(t, ok)
	assert.Equal(t, "3308", host)
}
