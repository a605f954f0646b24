package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/tuner/packages/body"
)

// BuildMultipartBody writes fields and files as multipart/form-data. Files
// that do not exist are skipped. Fields and files are written in key order.
func BuildMultipartBody(mp *body.Multipart, baseDir string) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for _, name := range sortedKeys(mp.Fields) {
		for _, value := range fieldValues(mp.Fields[name]) {
			if err := w.WriteField(name, value); err != nil {
				return nil, "", fmt.Errorf("write field %q: %w", name, err)
			}
		}
	}

	for _, name := range sortedKeys(mp.Files) {
		path, err := resolveUpload(mp.Files[name], baseDir)
		if err != nil {
			return nil, "", err
		}
		if err := attachFile(w, name, path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("attach %q: %w", name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// resolveUpload joins relative upload paths onto baseDir and refuses paths
// that escape it.
func resolveUpload(path, baseDir string) (string, error) {
	if baseDir == "" {
		return path, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	if err := EnsureWithinBase(path, baseDir); err != nil {
		return "", err
	}
	return path, nil
}

func attachFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

// EnsureWithinBase reports an error when path resolves outside baseDir.
// An empty baseDir allows everything.
func EnsureWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("resolve base directory: %w", err)
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal: %s escapes %s", path, baseDir)
	}
	return nil
}

func fieldValues(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{""}
	case []string:
		return t
	case []any:
		out := make([]string, len(t))
		for i, item := range t {
			out[i] = formatParam(item)
		}
		return out
	}
	return []string{formatParam(v)}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
