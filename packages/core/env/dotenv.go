package env

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

var (
	dquoteReplacer = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`)
	dotenvKey      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
	dotenvRef      = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_.]*)\}`)
)

// DotEnvError reports a malformed line in a .env file
type DotEnvError struct {
	Path    string
	Line    int
	Message string
}

func (e *DotEnvError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
}

// LoadDotEnv reads a .env file. Nothing is exported to the process
// environment; the values are merged into the current Environment by the
// caller.
func LoadDotEnv(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open env file: %w", err)
	}
	defer file.Close()

	vars, err := ParseDotEnv(file)
	var de *DotEnvError
	if errors.As(err, &de) {
		de.Path = path
	}
	return vars, err
}

// ParseDotEnv parses KEY=value lines. It accepts an optional "export "
// prefix, "#" comments (whole-line, or after whitespace in unquoted values),
// and single- or double-quoted values. ${NAME} expands to an earlier key or,
// failing that, the process environment; single-quoted values are literal.
func ParseDotEnv(r io.Reader) (map[string]string, error) {
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
			return nil, &DotEnvError{Line: lineNo, Message: fmt.Sprintf("expected KEY=value, got %q", line)}
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		if !dotenvKey.MatchString(key) {
			return nil, &DotEnvError{Line: lineNo, Message: fmt.Sprintf("invalid key %q", key)}
		}

		value, err := dotenvValue(strings.TrimSpace(value), result)
		if err != nil {
			return nil, &DotEnvError{Line: lineNo, Message: err.Error()}
		}
		result[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}
	return result, nil
}

func dotenvValue(raw string, seen map[string]string) (string, error) {
	if raw == "" {
		return "", nil
	}
	switch quote := raw[0]; quote {
	case '\'', '"':
		end := strings.LastIndexByte(raw, quote)
		if end == 0 {
			return "", fmt.Errorf("unterminated %c quote", quote)
		}
		if rest := strings.TrimSpace(raw[end+1:]); rest != "" && !strings.HasPrefix(rest, "#") {
			return "", fmt.Errorf("unexpected text after closing quote: %q", rest)
		}
		inner := raw[1:end]
		if quote == '\'' {
			return inner, nil
		}
		return expandDotEnv(dquoteReplacer.Replace(inner), seen), nil
	}

	if i := strings.Index(raw, " #"); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	return expandDotEnv(raw, seen), nil
}

func expandDotEnv(s string, seen map[string]string) string {
	return dotenvRef.ReplaceAllStringFunc(s, func(m string) string {
		name := dotenvRef.FindStringSubmatch(m)[1]
		if v, ok := seen[name]; ok {
			return v
		}
		return os.Getenv(name)
	})
}
