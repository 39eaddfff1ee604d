// Package envfile renders and updates the project's .env file.
//
// The rendered file groups variables into fixed, commented sections so a
// developer scanning it can find the database block or the tool IDs
// without grepping. Rendering is deterministic: the same variable set
// always produces byte-identical output.
package envfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/EntitiesAI/EntitiesOps/cmd/entitiesctl/internal/envgen"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrMalformedLine is returned when a line cannot be parsed as KEY=VALUE.
	ErrMalformedLine = errors.New("malformed env line")
)

// =============================================================================
// Section Layout
// =============================================================================

// Section is a named group of keys in the rendered file.
type Section struct {
	Name string
	Keys []string
}

// otherSection collects keys not claimed by any named section.
const otherSection = "Other"

// emptySectionPlaceholder is written when a section has no variables.
const emptySectionPlaceholder = "# (No variables configured for this section)"

// Layout is the fixed section order for the rendered file.
var Layout = []Section{
	{Name: "Base URLs", Keys: []string{
		"ASSISTANTS_BASE_URL",
		"SANDBOX_SERVER_URL",
		"DOWNLOAD_BASE_URL",
		"HYPERBOLIC_BASE_URL",
		"QDRANT_URL",
		"BASE_URL_HEALTH",
		"SHELL_SERVER_URL",
		"CODE_EXECUTION_URL",
	}},
	{Name: "Database Configuration", Keys: []string{
		"DATABASE_URL",
		"SPECIAL_DB_URL",
		"MYSQL_HOST",
		"MYSQL_PORT",
		"MYSQL_DATABASE",
		"MYSQL_USER",
		"MYSQL_PASSWORD",
		"MYSQL_ROOT_PASSWORD",
	}},
	{Name: "API Keys & Secrets", Keys: []string{
		"API_KEY",
		"SECRET_KEY",
		"DEFAULT_SECRET_KEY",
		"SIGNED_URL_SECRET",
		"BOOTSTRAP_ADMIN_API_KEY",
		"ADMIN_API_KEY",
	}},
	{Name: "Platform Settings", Keys: []string{
		"LOG_LEVEL",
		"PYTHONUNBUFFERED",
		"DISABLE_FIREJAIL",
		"SHARED_PATH",
	}},
	{Name: "SMB Client Configuration", Keys: []string{
		"SMBCLIENT_SERVER",
		"SMBCLIENT_SHARE",
		"SMBCLIENT_USERNAME",
		"SMBCLIENT_PASSWORD",
		"SMBCLIENT_PORT",
	}},
	{Name: "Tool Identifiers", Keys: []string{
		"TOOL_CODE_INTERPRETER",
		"TOOL_WEB_SEARCH",
		"TOOL_COMPUTER",
		"TOOL_VECTOR_STORE_SEARCH",
	}},
}

// =============================================================================
// Rendering
// =============================================================================

// Render produces the sectioned .env content for the given variables.
//
// # Description
//
// Variables are grouped per Layout; keys not claimed by a named section
// land in a trailing "Other" section, sorted. Sections with no matching
// variables still appear, with a placeholder comment, so the file shape
// stays stable across projects.
//
// # Outputs
//
//   - []byte: Complete file content, deterministic for a given input
//
// # Example
//
//	content := envfile.Render(vars)
//	os.WriteFile(".env", content, 0600)
func Render(vars *envgen.EnvVars) []byte {
	var b strings.Builder

	b.WriteString("# Environment configuration for the Entities stack.\n")
	b.WriteString("# Generated by entitiesctl. Edit values as needed; the file is\n")
	b.WriteString("# never overwritten once it exists.\n")

	claimed := make(map[string]bool)
	for _, section := range Layout {
		b.WriteString("\n")
		writeSectionHeader(&b, section.Name)

		wrote := false
		for _, key := range section.Keys {
			claimed[key] = true
			if v, ok := vars.Lookup(key); ok {
				writeVar(&b, v)
				wrote = true
			}
		}
		if !wrote {
			b.WriteString(emptySectionPlaceholder + "\n")
		}
	}

	var leftovers []string
	for _, key := range vars.Keys() {
		if !claimed[key] {
			leftovers = append(leftovers, key)
		}
	}
	sort.Strings(leftovers)

	b.WriteString("\n")
	writeSectionHeader(&b, otherSection)
	if len(leftovers) == 0 {
		b.WriteString(emptySectionPlaceholder + "\n")
	} else {
		for _, key := range leftovers {
			if v, ok := vars.Lookup(key); ok {
				writeVar(&b, v)
			}
		}
	}

	return []byte(b.String())
}

func writeSectionHeader(b *strings.Builder, name string) {
	fmt.Fprintf(b, "# --- %s ---\n", name)
}

func writeVar(b *strings.Builder, v envgen.EnvVar) {
	fmt.Fprintf(b, "%s=%s\n", v.Key, Quote(v.Value))
}

// Quote returns the value as it should appear in the file.
//
// # Description
//
// A value is double-quoted, with backslash and double-quote escaped, when
// it contains a space, '#', or '=', is empty, or already looks
// quote-wrapped (so the wrapping survives a round trip instead of being
// silently stripped by a parser). Anything else is written bare.
func Quote(value string) string {
	if needsQuoting(value) {
		escaped := strings.ReplaceAll(value, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)
		return `"` + escaped + `"`
	}
	return value
}

func needsQuoting(value string) bool {
	if value == "" {
		return true
	}
	if strings.ContainsAny(value, " #=") {
		return true
	}
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		return true
	}
	return false
}

// =============================================================================
// Writing
// =============================================================================

// WriteIfAbsent writes the rendered file only if path doesn't exist.
//
// # Description
//
// An existing .env is operator-owned: it may carry hand-edited values and
// secrets already distributed to containers, so it is never regenerated.
//
// # Outputs
//
//   - bool: true if the file was written
//   - error: Non-nil on I/O failure
func WriteIfAbsent(path string, vars *envgen.EnvVars) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}

	if err := os.WriteFile(path, Render(vars), 0600); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// =============================================================================
// Parsing and Updating
// =============================================================================

// Parse reads KEY=VALUE pairs from env file content.
//
// # Description
//
// Blank lines and comments are skipped. Quoted values are unescaped.
// Inverse of Render's quoting, used for round-trip verification and for
// reading credentials back during bootstrap.
//
// # Outputs
//
//   - map[string]string: Parsed variables
//   - error: ErrMalformedLine (wrapped) on a line without '='
func Parse(r io.Reader) (map[string]string, error) {
	result := make(map[string]string)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("%w: line %d: %q", ErrMalformedLine, lineNo, line)
		}

		result[strings.TrimSpace(key)] = Unquote(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan env content: %w", err)
	}

	return result, nil
}

// Unquote reverses Quote for a single value.
func Unquote(value string) string {
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		inner := value[1 : len(value)-1]
		inner = strings.ReplaceAll(inner, `\"`, `"`)
		inner = strings.ReplaceAll(inner, `\\`, `\`)
		return inner
	}
	return value
}

// SetKey updates or appends a single key in an existing env file.
//
// # Description
//
// The value is always written quoted, matching how credential writers
// behave elsewhere in the stack. An existing assignment is replaced in
// place (preserving file layout); a missing key is appended at the end.
// The file is created if absent.
func SetKey(path, key, value string) error {
	quoted := `"` + strings.ReplaceAll(strings.ReplaceAll(value, `\`, `\\`), `"`, `\"`) + `"`
	assignment := fmt.Sprintf("%s=%s", key, quoted)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("read %s: %w", path, err)
		}
		return os.WriteFile(path, []byte(assignment+"\n"), 0600)
	}

	lines := strings.Split(string(data), "\n")
	replaced := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, key+"=") {
			lines[i] = assignment
			replaced = true
			break
		}
	}

	if !replaced {
		// Append, keeping exactly one trailing newline.
		for len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		lines = append(lines, assignment)
	}

	content := strings.Join(lines, "\n")
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0600)
}
