// Package report records key/value diagnostics about a model and writes
// them to one or more output formats.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/edaniels/golog"
)

const DefaultMaxLength = 36

// Format names usable in exclusion lists.
const (
	Stdout = "stdout"
	Log    = "log"
	JSON   = "json"
)

// Writer receives one dump of recorded values.
type Writer interface {
	Write(values map[string]any, excluded map[string][]string, step int) error
	Close() error
}

func excludes(excluded []string, names ...string) bool {
	for _, e := range excluded {
		for _, n := range names {
			if e == n {
				return true
			}
		}
	}
	return false
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HumanFormat writes ASCII tables. Keys of the form tag/name are grouped
// under a tag line.
type HumanFormat struct {
	MaxLength int

	w      io.Writer
	closer io.Closer
	log    golog.Logger
}

func NewHumanFormat(w io.Writer, logger golog.Logger) *HumanFormat {
	if logger == nil {
		logger = golog.Global()
	}
	return &HumanFormat{MaxLength: DefaultMaxLength, w: w, log: logger}
}

func (h *HumanFormat) truncate(s string) string {
	r := []rune(s)
	if h.MaxLength > 3 && len(r) > h.MaxLength {
		return string(r[:h.MaxLength-3]) + "..."
	}
	return s
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return fmt.Sprintf("%-8.3g", x)
	case float32:
		return fmt.Sprintf("%-8.3g", x)
	default:
		return fmt.Sprint(v)
	}
}

func (h *HumanFormat) Write(values map[string]any, excluded map[string][]string, step int) error {
	type row struct{ key, val string }
	var (
		rows []row
		tag  string
		tags = map[string]bool{}
	)
	for _, key := range sortedKeys(values) {
		if excludes(excluded[key], Stdout, Log) {
			continue
		}
		val := formatValue(values[key])
		if i := strings.Index(key, "/"); i > 0 {
			tag = key[:i+1]
			if !tags[tag] {
				tags[tag] = true
				rows = append(rows, row{h.truncate(tag), ""})
			}
		}
		if tag != "" && strings.HasPrefix(key, tag) {
			key = "   " + key[len(tag):]
		}
		rows = append(rows, row{h.truncate(key), h.truncate(val)})
	}
	if len(rows) == 0 {
		h.log.Warnw("tried to write an empty report", "step", step)
		return nil
	}

	keyWidth, valWidth := 0, 0
	for _, r := range rows {
		keyWidth = max(keyWidth, len([]rune(r.key)))
		valWidth = max(valWidth, len([]rune(r.val)))
	}
	var b strings.Builder
	dashes := strings.Repeat("-", keyWidth+valWidth+7)
	b.WriteString(dashes + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s%s | %s%s |\n",
			r.key, strings.Repeat(" ", keyWidth-len([]rune(r.key))),
			r.val, strings.Repeat(" ", valWidth-len([]rune(r.val))))
	}
	b.WriteString(dashes + "\n")
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *HumanFormat) Close() error {
	if h.closer != nil {
		return h.closer.Close()
	}
	return nil
}

// JSONFormat writes one JSON object per dump.
type JSONFormat struct {
	enc    *json.Encoder
	closer io.Closer
}

func NewJSONFormat(w io.Writer) *JSONFormat {
	return &JSONFormat{enc: json.NewEncoder(w)}
}

func (j *JSONFormat) Write(values map[string]any, excluded map[string][]string, step int) error {
	obj := make(map[string]any, len(values)+1)
	for k, v := range values {
		if excludes(excluded[k], JSON) {
			continue
		}
		obj[k] = v
	}
	obj["step"] = step
	return j.enc.Encode(obj)
}

func (j *JSONFormat) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}

// MakeFormat returns the named writer: stdout, log (log.txt in dir) or json
// (progress.json in dir).
func MakeFormat(name, dir string, logger golog.Logger) (Writer, error) {
	if name == Stdout {
		return NewHumanFormat(os.Stdout, logger), nil
	}
	if name != Log && name != JSON {
		return nil, fmt.Errorf("report: unknown format %q", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: create %s: %w", dir, err)
	}
	if name == Log {
		f, err := os.Create(filepath.Join(dir, "log.txt"))
		if err != nil {
			return nil, fmt.Errorf("report: %w", err)
		}
		h := NewHumanFormat(f, logger)
		h.closer = f
		return h, nil
	}
	f, err := os.Create(filepath.Join(dir, "progress.json"))
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	j := NewJSONFormat(f)
	j.closer = f
	return j, nil
}
