package suite

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/abdul-hamid-achik/tuner/packages/core/model"
	"gopkg.in/yaml.v3"
)

// Extensions lists the file extensions treated as suite files.
var Extensions = []string{".yaml", ".yml"}

// config files share the suite extensions and are never suites
var configNames = []string{"tuner.yaml", ".tuner.yaml", "tuner.yml"}

type Suite struct {
	Path        string
	Name        string
	Description string
	Variables   map[string]any
	// WaitFor, when set, is polled before the first call runs.
	WaitFor *WaitFor
	Calls   []*Call
}

const (
	DefaultWaitTimeout  = 30 * time.Second
	DefaultWaitInterval = time.Second
)

// WaitFor describes a readiness probe: URL is polled every Interval until
// it answers with Status or Timeout elapses.
type WaitFor struct {
	URL      string
	Status   int
	Timeout  time.Duration
	Interval time.Duration
}

// Call is one entry of a suite: the model, the overrides to run it with
// and scheduling metadata.
type Call struct {
	Model     model.RequestModel
	Overrides *model.Overrides
	Tags      []string
	// Skip holds the skip reason; empty means the call runs.
	Skip       string
	Only       bool
	Depends    []string
	Retry      int
	RetryDelay time.Duration
	RetryOn    []int
	Line       int
}

func (c *Call) Name() string {
	return c.Model.Label()
}

func (c *Call) HasTag(tag string) bool {
	return slices.Contains(c.Tags, tag)
}

// BaseDir is the directory relative file references (multipart files,
// schema files) are resolved against.
func (s *Suite) BaseDir() string {
	if s.Path == "" {
		return "."
	}
	return filepath.Dir(s.Path)
}

func ParseFile(path string) (*Suite, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(content, path)
}

func Parse(input []byte, filename string) (*Suite, error) {
	var raw rawSuite
	if err := yaml.Unmarshal(input, &raw); err != nil {
		return nil, &ParseError{File: filename, Message: err.Error()}
	}

	s := &Suite{
		Path:        filename,
		Name:        raw.Name,
		Description: raw.Description,
		Variables:   raw.Variables,
	}
	waitFor, err := raw.WaitFor.build()
	if err != nil {
		return nil, &ParseError{File: filename, Message: err.Error()}
	}
	s.WaitFor = waitFor
	if s.Name == "" && filename != "" {
		base := filepath.Base(filename)
		s.Name = base[:len(base)-len(filepath.Ext(base))]
	}

	for i := range raw.Calls {
		node := &raw.Calls[i]
		var rc rawCall
		if err := node.Decode(&rc); err != nil {
			return nil, &ParseError{File: filename, Line: node.Line, Message: err.Error()}
		}
		call, err := rc.build()
		if err != nil {
			name := rc.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i+1)
			}
			return nil, &ParseError{File: filename, Line: node.Line, Call: name, Message: err.Error()}
		}
		call.Line = node.Line
		s.Calls = append(s.Calls, call)
	}

	return s, nil
}

// IsSuiteFile reports whether path has a suite file extension.
func IsSuiteFile(path string) bool {
	return slices.Contains(Extensions, filepath.Ext(path))
}

// Discover expands paths into suite files. Directories are walked
// recursively; files are returned as given.
func Discover(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && IsSuiteFile(path) && !slices.Contains(configNames, d.Name()) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
