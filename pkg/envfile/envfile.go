// Package envfile reads dotenv-style files used to supply default
// variable values alongside a stack configuration.
//
// Files are merged in precedence order, later files overriding earlier
// ones:
//
//	.env
//	.env.local
//	.env.<environment>
//	.env.<environment>.local
package envfile

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load reads the dotenv chain rooted at dir. Missing files are not an
// error. When environment is empty only .env and .env.local are
// considered.
func Load(dir, environment string) (map[string]string, error) {
	files := []string{".env", ".env.local"}
	if environment != "" {
		files = append(files, ".env."+environment, ".env."+environment+".local")
	}

	vars := make(map[string]string)
	for _, name := range files {
		path := filepath.Join(dir, name)
		content, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := parseEnvFile(content, vars); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return vars, nil
}

// ParseFile reads a single KEY=VALUE file.
func ParseFile(path string) (map[string]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	vars := make(map[string]string)
	if err := parseEnvFile(content, vars); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return vars, nil
}

func parseEnvFile(content []byte, vars map[string]string) error {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("malformed line %q", line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		vars[key] = value
	}
	return scanner.Err()
}
