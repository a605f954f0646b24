package builtin

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotCall is returned by Call for expressions that are not name(args).
var ErrNotCall = errors.New("not a function call")

// Func evaluates a builtin. Arguments arrive unquoted.
type Func func(args []string) (any, error)

type Registry struct {
	funcs map[string]Func
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	defaults := map[string]Func{
		"now":          funcNow,
		"date":         funcDate,
		"timestamp":    funcTimestamp,
		"timestampMs":  funcTimestampMs,
		"uuid":         funcUUID,
		"random":       funcRandom,
		"randomString": funcRandomString,
		"randomEmail":  funcRandomEmail,
		"base64":       unary(encodeBase64),
		"base64Decode": unary(decodeBase64),
		"md5":          unary(hexDigest(func(b []byte) []byte { h := md5.Sum(b); return h[:] })),
		"sha256":       unary(hexDigest(func(b []byte) []byte { h := sha256.Sum256(b); return h[:] })),
		"urlEncode":    unary(func(s string) (any, error) { return url.QueryEscape(s), nil }),
		"urlDecode":    unary(func(s string) (any, error) { return url.QueryUnescape(s) }),
		"env":          unary(lookupEnv),
	}
	for name, fn := range defaults {
		r.funcs[name] = fn
	}
}

func encodeBase64(s string) (any, error) {
	return base64.StdEncoding.EncodeToString([]byte(s)), nil
}

func decodeBase64(s string) (any, error) {
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return string(decoded), nil
}

func hexDigest(sum func([]byte) []byte) func(string) (any, error) {
	return func(s string) (any, error) {
		return hex.EncodeToString(sum([]byte(s))), nil
	}
}

func lookupEnv(name string) (any, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil, fmt.Errorf("environment variable %q is not set", name)
	}
	return v, nil
}

func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Names returns the registered function names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// IsCall reports whether expr has the name(args) shape.
func IsCall(expr string) bool {
	return funcCallPattern.MatchString(strings.TrimSpace(expr))
}

// Call evaluates expr, e.g. `random(1, 6)`.
func (r *Registry) Call(expr string) (any, error) {
	matches := funcCallPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if matches == nil {
		return nil, ErrNotCall
	}

	name := matches[1]
	fn, ok := r.funcs[name]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", name)
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}

	v, err := fn(args)
	if err != nil {
		return nil, fmt.Errorf("%s(): %w", name, err)
	}
	return v, nil
}

// parseArgs splits a comma separated argument list. Single or double quotes
// protect commas and are stripped.
func parseArgs(s string) []string {
	var (
		args  []string
		cur   strings.Builder
		quote rune
	)
	flush := func() {
		args = append(args, strings.TrimSpace(cur.String()))
		cur.Reset()
	}
	for _, ch := range s {
		switch {
		case quote != 0 && ch == quote:
			quote = 0
		case quote == 0 && (ch == '"' || ch == '\''):
			quote = ch
		case quote == 0 && ch == ',':
			flush()
		default:
			cur.WriteRune(ch)
		}
	}
	if cur.Len() > 0 {
		flush()
	}
	return args
}

func unary(fn func(string) (any, error)) Func {
	return func(args []string) (any, error) {
		if len(args) < 1 {
			return nil, errors.New("expects one argument")
		}
		return fn(args[0])
	}
}

func intArg(args []string, i, def int) (int, error) {
	if len(args) <= i {
		return def, nil
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("argument %d (%q) is not a valid integer", i+1, args[i])
	}
	return v, nil
}

func funcNow(_ []string) (any, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

func funcDate(args []string) (any, error) {
	layout := "2006-01-02"
	if len(args) >= 1 {
		layout = args[0]
	}
	return time.Now().UTC().Format(layout), nil
}

func funcTimestamp(_ []string) (any, error) {
	return time.Now().Unix(), nil
}

func funcTimestampMs(_ []string) (any, error) {
	return time.Now().UnixMilli(), nil
}

func funcUUID(_ []string) (any, error) {
	return uuid.New().String(), nil
}

func funcRandom(args []string) (any, error) {
	min, err := intArg(args, 0, 0)
	if err != nil {
		return nil, err
	}
	max, err := intArg(args, 1, 100)
	if err != nil {
		return nil, err
	}
	if max < min {
		return nil, fmt.Errorf("max %d is less than min %d", max, min)
	}
	return min + rand.Intn(max-min+1), nil
}

func funcRandomString(args []string) (any, error) {
	length, err := intArg(args, 0, 16)
	if err != nil {
		return nil, err
	}
	return randomString(length, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"), nil
}

func funcRandomEmail(_ []string) (any, error) {
	user := randomString(8, "abcdefghijklmnopqrstuvwxyz")
	domain := randomString(6, "abcdefghijklmnopqrstuvwxyz")
	return fmt.Sprintf("%s@%s.com", user, domain), nil
}

func randomString(length int, charset string) string {
	if length < 0 {
		length = 0
	}
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
