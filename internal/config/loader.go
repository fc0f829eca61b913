package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
)

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads a YAML configuration file, expands environment variables,
// and parses it into a Config struct.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded, err := expandEnv(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("config: expanding variables in %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &cfg, nil
}

// envTemplate is the configuration used when no file is found. Values of
// the quoted fields are escaped before substitution.
const envTemplate = `version: "1"
log:
  level: "${LOG_LEVEL:-info}"
  format: "${LOG_FORMAT:-text}"
modules:
  odoo.client:
    url: "${ODOO_URL}"
    database: "${ODOO_DATABASE}"
    username: "${ODOO_USERNAME}"
    password: "${ODOO_PASSWORD}"
    timeout: ${ODOO_TIMEOUT:-30}
    max_retries: ${ODOO_MAX_RETRIES:-3}
    retry_delay: ${ODOO_RETRY_DELAY:-1}
    default_limit: ${ODOO_DEFAULT_LIMIT:-100}
    max_limit: ${ODOO_MAX_LIMIT:-1000}
  mcp.server:
    name: "${MCP_SERVER_NAME:-odoo-mcp}"
    transport: "${MCP_TRANSPORT:-stdio}"
`

// FromEnv builds the configuration from ODOO_* and MCP_* environment
// variables. The error lists every required variable that is unset.
func FromEnv() (*Config, error) {
	expanded, err := expandEnv([]byte(envTemplate), quoteYAML)
	if err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment configuration: %w", err)
	}
	return &cfg, nil
}

// EnvTemplate returns the configuration template FromEnv expands. It is a
// valid starting point for a configuration file.
func EnvTemplate() string { return envTemplate }

// LoadDotEnv loads KEY=VALUE pairs from path into the process
// environment. Variables already set are left untouched. A missing file
// is not an error.
func LoadDotEnv(path string) error {
	err := gotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: loading %s: %w", path, err)
	}
	return nil
}

// UnresolvedError lists the variables that had neither a value nor a
// default.
type UnresolvedError struct {
	Names []string
}

func (e *UnresolvedError) Error() string {
	return "unresolved variables: " + strings.Join(e.Names, ", ")
}

// expandEnv replaces ${VAR} and ${VAR:-default} patterns in raw YAML bytes.
// When escape is non-nil it is applied to every substituted value.
// Returns an *UnresolvedError naming all unresolved variables.
func expandEnv(raw []byte, escape func(string) string) ([]byte, error) {
	var missing []string

	result := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])
		hasDefault := len(subs) > 2 && subs[2] != nil

		value, ok := os.LookupEnv(name)
		switch {
		case ok:
		case hasDefault:
			value = string(subs[2])
		default:
			if !slices.Contains(missing, name) {
				missing = append(missing, name)
			}
			return match
		}
		if escape != nil {
			value = escape(value)
		}
		return []byte(value)
	})

	if len(missing) > 0 {
		return result, &UnresolvedError{Names: missing}
	}
	return result, nil
}

// quoteYAML escapes s for use inside a YAML double-quoted scalar. Go's
// escape sequences are a subset of YAML's.
func quoteYAML(s string) string {
	q := strconv.Quote(s)
	return q[1 : len(q)-1]
}
