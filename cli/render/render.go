// Package render writes CLI output as json, yaml or an aligned table.
//
// Format selection:
//   - --format always wins; unknown formats are errors
//   - otherwise a terminal gets table and anything else gets json
//
// --no-color only affects table output. The TUI styles itself.
package render

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/fragstream/cli/tui"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format name. Empty returns "" so the caller can
// apply its default.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatTable, FormatYAML, "":
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer from the --format and --no-color flags.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = FormatJSON
		if isTerminal(os.Stdout) {
			format = FormatTable
		}
	}
	return &Renderer{format: format, noColor: c.Bool("no-color"), out: c.App.Writer}, nil
}

// NewRendererWithWriter creates a renderer with a custom writer.
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{format: format, noColor: noColor, out: out}
}

// Format returns the selected format.
func (r *Renderer) Format() Format {
	return r.format
}

// Render outputs data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable:
		return r.renderTable(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTUI runs the interactive view for viewType.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

func (r *Renderer) renderTable(data any) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)

	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Ptr && !v.IsNil() {
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			fmt.Fprintln(w, "(no results)")
			break
		}
		headers := structHeaders(elemType(v.Type()))
		fmt.Fprintln(w, r.header(headers))
		for i := range v.Len() {
			fmt.Fprintln(w, strings.Join(structRow(v.Index(i)), "\t"))
		}
	case reflect.Struct:
		for _, f := range visibleFields(v) {
			fmt.Fprintf(w, "%s:\t%s\n", f.name, formatValue(f.value))
		}
	case reflect.Map:
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		for _, k := range keys {
			fmt.Fprintf(w, "%v:\t%s\n", k.Interface(), formatValue(v.MapIndex(k)))
		}
	default:
		fmt.Fprintf(w, "%v\n", data)
	}

	return w.Flush()
}

func (r *Renderer) header(cols []string) string {
	line := strings.ToUpper(strings.Join(cols, "\t"))
	if r.noColor || r.out != os.Stdout {
		return line
	}
	return "\x1b[1m" + line + "\x1b[0m"
}

func elemType(t reflect.Type) reflect.Type {
	t = t.Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func structHeaders(t reflect.Type) []string {
	if t.Kind() != reflect.Struct {
		return []string{"value"}
	}
	var out []string
	for _, f := range visibleFields(reflect.New(t).Elem()) {
		out = append(out, f.name)
	}
	return out
}

func structRow(v reflect.Value) []string {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return []string{formatValue(v)}
	}
	var out []string
	for _, f := range visibleFields(v) {
		out = append(out, formatValue(f.value))
	}
	return out
}

type namedValue struct {
	name  string
	value reflect.Value
}

// visibleFields lists exported fields in order, flattening embedded structs.
func visibleFields(v reflect.Value) []namedValue {
	var out []namedValue
	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			out = append(out, visibleFields(v.Field(i))...)
			continue
		}
		if f.IsExported() {
			out = append(out, namedValue{name: fieldName(f), value: v.Field(i)})
		}
	}
	return out
}

// fieldName prefers the json tag name.
func fieldName(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
			return name
		}
	}
	return strings.ToLower(f.Name)
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
)

func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}

	switch {
	case v.Type() == timeType:
		t := v.Interface().(time.Time)
		if t.IsZero() {
			return ""
		}
		return t.Format(time.RFC3339Nano)
	case v.Type() == durationType:
		return v.Interface().(time.Duration).String()
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
