// Package envfile reads, updates and watches dotenv files such as .env.local,
// the process-environment source for agent credentials and persona settings.
package envfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/subosito/gotenv"
)

// DefaultFile is the env file read at agent startup.
const DefaultFile = ".env.local"

var (
	// ErrKeyRequired is returned by Set for an empty key.
	ErrKeyRequired = errors.New("env key is required")

	// ErrInvalidKey is returned by Set for keys containing '=' or whitespace.
	ErrInvalidKey = errors.New("env key must not contain '=' or whitespace")

	// ErrInvalidValue is returned by Set for values spanning several lines.
	ErrInvalidValue = errors.New("env value must be a single line")
)

// Read parses the env file at path without touching the process environment.
func Read(path string) (map[string]string, error) {
	env, err := gotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	return env, nil
}

// Load reads path and sets every variable that is not already present in the
// process environment. Existing variables win.
func Load(path string) error {
	env, err := Read(path)
	if err != nil {
		return err
	}
	_, err = Apply(env, false)
	return err
}

// Apply sets env into the process environment and returns the keys whose
// value changed. With override false, keys already set are left alone.
func Apply(env map[string]string, override bool) ([]string, error) {
	var changed []string
	for k, v := range env {
		current, exists := os.LookupEnv(k)
		if exists && (!override || current == v) {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return changed, fmt.Errorf("setting %s: %w", k, err)
		}
		changed = append(changed, k)
	}
	return changed, nil
}

// Set rewrites every "key=" line of the env file at path to key=value, or
// appends the assignment when no such line exists. The file must already
// exist; a missing file yields an error wrapping os.ErrNotExist.
func Set(path, key, value string) error {
	switch {
	case key == "":
		return ErrKeyRequired
	case strings.ContainsAny(key, "= \t\r\n"):
		return ErrInvalidKey
	case strings.ContainsAny(value, "\r\n"):
		return ErrInvalidValue
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("env file %s: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading env file %s: %w", path, err)
	}

	prefix := key + "="
	assignment := prefix + value

	var out bytes.Buffer
	updated := false
	lines := strings.SplitAfter(string(data), "\n")
	for _, line := range lines {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, prefix) {
			out.WriteString(assignment + "\n")
			updated = true
			continue
		}
		out.WriteString(line)
	}

	if !updated {
		if out.Len() > 0 && !bytes.HasSuffix(out.Bytes(), []byte("\n")) {
			out.WriteByte('\n')
		}
		out.WriteString(assignment + "\n")
	}

	if err := os.WriteFile(path, out.Bytes(), info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing env file %s: %w", path, err)
	}

	return nil
}
