package compose

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrFileNotFound is returned when the compose file doesn't exist.
	ErrFileNotFound = errors.New("compose file not found")

	// ErrParse is returned when the compose file is not valid YAML.
	ErrParse = errors.New("compose file parse failed")
)

// =============================================================================
// Types
// =============================================================================

// File is a parsed docker-compose document.
//
// # Description
//
// Holds the subset of the compose schema this tool needs: per-service port
// publications and environment. Everything else in the document is ignored
// but tolerated, so the reader works against real project compose files
// without modeling the full schema.
//
// # Limitations
//
//   - Long-form (mapping) port entries are skipped
//   - Port ranges ("8000-8010:8000-8010") are skipped
type File struct {
	Services map[string]Service `yaml:"services"`
}

// Service is a single compose service definition.
type Service struct {
	// Ports holds short-form port publications as written in the file.
	Ports []PortSpec `yaml:"ports"`

	// Environment holds the service environment in either compose form.
	Environment EnvMap `yaml:"environment"`
}

// PortSpec is one entry of a service's ports list.
//
// Compose accepts bare integers (`- 3306`) as well as strings
// (`- "3307:3306"`), so the scalar is normalized to a string during
// unmarshalling. Mapping entries (long form) decode to an empty spec and
// are skipped during lookup.
type PortSpec string

// UnmarshalYAML accepts scalar port entries and tolerates other shapes.
func (p *PortSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		*p = ""
		return nil
	}
	*p = PortSpec(value.Value)
	return nil
}

// EnvMap is a service environment in either compose form.
//
// Compose allows two spellings:
//
//	environment:
//	  MYSQL_USER: ollama          # mapping form
//
//	environment:
//	  - MYSQL_USER=ollama         # list form
//
// Both decode to the same map. List entries without '=' declare
// pass-through variables and are skipped.
type EnvMap map[string]string

// UnmarshalYAML decodes both the mapping and list environment forms.
func (e *EnvMap) UnmarshalYAML(value *yaml.Node) error {
	result := make(map[string]string)

	switch value.Kind {
	case yaml.MappingNode:
		var m map[string]string
		if err := value.Decode(&m); err != nil {
			return err
		}
		result = m

	case yaml.SequenceNode:
		var entries []string
		if err := value.Decode(&entries); err != nil {
			return err
		}
		for _, entry := range entries {
			key, val, found := strings.Cut(entry, "=")
			if !found {
				continue
			}
			result[key] = val
		}

	default:
		// null or unexpected shape: treat as empty
	}

	*e = result
	return nil
}

// =============================================================================
// Loading
// =============================================================================

// Load parses a compose file from disk.
//
// # Description
//
// Reads and decodes the compose document. A missing file and malformed
// YAML are distinct errors so callers can give distinct operator guidance
// (run from the project root vs. fix the file).
//
// # Inputs
//
//   - path: Path to docker-compose.yaml
//
// # Outputs
//
//   - *File: Parsed document
//   - error: ErrFileNotFound or ErrParse (wrapped) on failure
//
// # Example
//
//	cfg, err := compose.Load("docker-compose.yaml")
//	if errors.Is(err, compose.ErrFileNotFound) {
//	    fmt.Println("run this from the project root")
//	}
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("read compose file %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}

	return &f, nil
}

// =============================================================================
// Lookups
// =============================================================================

// HostPort returns the host port publishing the given container port.
//
// # Description
//
// Scans the service's short-form port entries. Two spellings carry a
// host mapping:
//
//   - "3307:3306"           -> host:container
//   - "127.0.0.1:3307:3306" -> ip:host:container
//
// A container-only entry ("3306") publishes on a random host port, so
// it yields no mapping here. Malformed or non-numeric entries are
// skipped rather than treated as fatal. The first matching entry wins.
//
// # Inputs
//
//   - service: Service name (e.g. "db")
//   - containerPort: Container-side port to look up
//
// # Outputs
//
//   - string: Host port as written in the file
//   - bool: false if the service or a matching publication doesn't exist
//
// # Example
//
//	hostPort, ok := cfg.HostPort("db", 3306)
//	// ports: ["3307:3306"] -> "3307", true
func (f *File) HostPort(service string, containerPort int) (string, bool) {
	svc, ok := f.Services[service]
	if !ok {
		return "", false
	}

	want := strconv.Itoa(containerPort)
	for _, spec := range svc.Ports {
		host, container, ok := splitPortSpec(string(spec))
		if !ok {
			continue
		}
		if container == want {
			return host, true
		}
	}
	return "", false
}

// EnvValue returns an environment value declared on the service.
//
// # Inputs
//
//   - service: Service name
//   - key: Environment variable name
//
// # Outputs
//
//   - string: The declared value
//   - bool: false if the service or key doesn't exist
func (f *File) EnvValue(service, key string) (string, bool) {
	svc, ok := f.Services[service]
	if !ok {
		return "", false
	}
	value, ok := svc.Environment[key]
	return value, ok
}

// splitPortSpec splits a short-form port entry into host and container
// sides. Returns ok=false for entries this reader doesn't handle (long
// form, ranges, protocol suffixes on malformed segments).
func splitPortSpec(spec string) (host, container string, ok bool) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", "", false
	}

	// Strip a trailing protocol ("3307:3306/tcp").
	if idx := strings.IndexByte(spec, '/'); idx >= 0 {
		spec = spec[:idx]
	}

	parts := strings.Split(spec, ":")
	switch len(parts) {
	case 2:
		host, container = parts[0], parts[1]
	case 3:
		host, container = parts[1], parts[2]
	default:
		return "", "", false
	}

	if !isPortNumber(host) || !isPortNumber(container) {
		return "", "", false
	}
	return host, container, true
}

// isPortNumber reports whether s is a plain decimal port.
func isPortNumber(s string) bool {
	if s == "" {
		return false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	return n > 0 && n <= 65535
}
