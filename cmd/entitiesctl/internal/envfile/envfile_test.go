package envfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EntitiesAI/EntitiesOps/cmd/entitiesctl/internal/envgen"
)

// sampleVars builds a small variable set covering several sections.
func sampleVars(t *testing.T) *envgen.EnvVars {
	t.Helper()
	return envgen.MustNewEnvVars(
		envgen.EnvVar{Key: "ASSISTANTS_BASE_URL", Value: "http://api:9000"},
		envgen.EnvVar{Key: "MYSQL_PASSWORD", Value: "p@ss word", Sensitive: true},
		envgen.EnvVar{Key: "LOG_LEVEL", Value: "INFO"},
		envgen.EnvVar{Key: "SHARED_PATH", Value: "/home/dev/.local/share/entities_share"},
		envgen.EnvVar{Key: "ZEBRA_CUSTOM", Value: "z"},
		envgen.EnvVar{Key: "ALPHA_CUSTOM", Value: "a"},
	)
}

func TestRender_Deterministic(t *testing.T) {
	vars := sampleVars(t)
	assert.Equal(t, Render(vars), Render(vars), "render must be byte-identical for the same input")
}

func TestRender_SectionsAndPlaceholders(t *testing.T) {
	content := string(Render(sampleVars(t)))

	// Every named section appears, populated or not.
	for _, section := range Layout {
		assert.Contains(t, content, "# --- "+section.Name+" ---")
	}
	assert.Contains(t, content, "# --- Other ---")

	// Empty sections carry the placeholder.
	assert.Contains(t, content, emptySectionPlaceholder)

	// Unclaimed keys land in Other, sorted.
	alpha := strings.Index(content, "ALPHA_CUSTOM=")
	zebra := strings.Index(content, "ZEBRA_CUSTOM=")
	require.GreaterOrEqual(t, alpha, 0)
	require.GreaterOrEqual(t, zebra, 0)
	assert.Less(t, alpha, zebra, "Other section must be sorted")
}

func TestRender_SectionOrderPlacesKeys(t *testing.T) {
	content := string(Render(sampleVars(t)))

	// MYSQL_PASSWORD must be inside the database section, before the next header.
	dbStart := strings.Index(content, "# --- Database Configuration ---")
	secretsStart := strings.Index(content, "# --- API Keys & Secrets ---")
	pw := strings.Index(content, "MYSQL_PASSWORD=")
	require.GreaterOrEqual(t, pw, 0)
	assert.Greater(t, pw, dbStart)
	assert.Less(t, pw, secretsStart)
}

func TestQuote(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
	}{
		{"bare", "plain-value", "plain-value"},
		{"space", "p@ss word", `"p@ss word"`},
		{"hash", "val#ue", `"val#ue"`},
		{"equals", "a=b", `"a=b"`},
		{"empty", "", `""`},
		{"quote wrapped", `"already"`, `"\"already\""`},
		{"backslash", `a b\c`, `"a b\\c"`},
		{"url untouched", "mysql+pymysql://u:p@db:3306/d", "mysql+pymysql://u:p@db:3306/d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Quote(tt.in))
		})
	}
}

func TestQuoteUnquote_RoundTrip(t *testing.T) {
	values := []string{
		"plain", "with space", "a=b", "", `"wrapped"`, `back\slash value`, "end ",
	}
	for _, v := range values {
		assert.Equal(t, v, Unquote(Quote(v)), "value %q", v)
	}
}

func TestParse_RoundTripsRender(t *testing.T) {
	vars := sampleVars(t)
	parsed, err := Parse(bytes.NewReader(Render(vars)))
	require.NoError(t, err)

	for _, key := range vars.Keys() {
		assert.Equal(t, vars.Get(key), parsed[key], "key %s", key)
	}
}

func TestParse_MalformedLine(t *testing.T) {
	_, err := Parse(strings.NewReader("GOOD=1\nnot a pair\n"))
	assert.ErrorIs(t, err, ErrMalformedLine)
}

func TestParse_SkipsCommentsAndBlanks(t *testing.T) {
	parsed, err := Parse(strings.NewReader("# comment\n\nKEY=value\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"KEY": "value"}, parsed)
}

func TestWriteIfAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	vars := sampleVars(t)

	wrote, err := WriteIfAbsent(path, vars)
	require.NoError(t, err)
	assert.True(t, wrote)

	first, err := os.ReadFile(path)
	require.NoError(t, err)

	// A second call never touches the file, even with different vars.
	other := envgen.MustNewEnvVars(envgen.EnvVar{Key: "DIFFERENT", Value: "set"})
	wrote, err = WriteIfAbsent(path, other)
	require.NoError(t, err)
	assert.False(t, wrote)

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second, "existing file must be byte-identical after second call")
}

func TestWriteIfAbsent_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	_, err := WriteIfAbsent(path, sampleVars(t))
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSetKey_ReplaceInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# header\nFIRST=1\nADMIN_API_KEY=old\nLAST=9\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	require.NoError(t, SetKey(path, "ADMIN_API_KEY", "ad_newkey"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(string(data), "\n")
	assert.Equal(t, "# header", lines[0])
	assert.Equal(t, "FIRST=1", lines[1])
	assert.Equal(t, `ADMIN_API_KEY="ad_newkey"`, lines[2])
	assert.Equal(t, "LAST=9", lines[3])
}

func TestSetKey_AppendsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("FIRST=1\n"), 0600))

	require.NoError(t, SetKey(path, "ADMIN_USER_ID", "user_abc"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "FIRST=1\nADMIN_USER_ID=\"user_abc\"\n", string(data))
}

func TestSetKey_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	require.NoError(t, SetKey(path, "KEY", "value"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "KEY=\"value\"\n", string(data))
}

func TestSetKey_EscapesValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, SetKey(path, "KEY", `va"lue\x`))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	parsed, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, `va"lue\x`, parsed["KEY"])
}
