package endpoints

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader reads the endpoints YAML file
type Loader struct {
	filePath string
}

// NewLoader creates a new endpoints loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Path returns the file the loader reads
func (l *Loader) Path() string { return l.filePath }

// Load reads the file, expands ${VAR} references and returns the endpoint
// URLs in file order. Any malformed entry fails the whole load. A file that
// lists nothing is valid and yields no extra endpoints.
func (l *Loader) Load() ([]string, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read endpoints file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
		return nil, fmt.Errorf("failed to parse endpoints yaml: %w", err)
	}

	out := make([]string, 0, len(file.Endpoints))
	for i, raw := range file.Endpoints {
		ep := strings.TrimSpace(raw)
		if ep == "" {
			continue
		}
		if err := checkEndpoint(ep); err != nil {
			return nil, fmt.Errorf("endpoint #%d: %w", i+1, err)
		}
		out = append(out, ep)
	}
	return out, nil
}

func checkEndpoint(ep string) error {
	u, err := url.Parse(ep)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", ep, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", ep)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", ep)
	}
	return nil
}
