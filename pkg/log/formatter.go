package log

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TextFormatter renders entries as a single human readable line:
//
//	2025-01-02T15:04:05.000Z INFO  queue opened component=registry queue=jobs
type TextFormatter struct {
	// TimeFormat defaults to an RFC3339 layout with milliseconds.
	TimeFormat string
	// ShowCaller appends file:line when known.
	ShowCaller bool
}

func (f *TextFormatter) Format(e *Entry) ([]byte, error) {
	layout := f.TimeFormat
	if layout == "" {
		layout = "2006-01-02T15:04:05.000Z07:00"
	}
	var buf bytes.Buffer
	buf.WriteString(e.Timestamp.Format(layout))
	buf.WriteByte(' ')
	fmt.Fprintf(&buf, "%-5s ", e.Level.String())
	buf.WriteString(e.Message)
	for _, k := range sortedKeys(e.Fields) {
		buf.WriteByte(' ')
		buf.WriteString(k)
		buf.WriteByte('=')
		writeTextValue(&buf, e.Fields[k])
	}
	if f.ShowCaller && e.Caller != "" {
		buf.WriteString(" caller=")
		buf.WriteString(e.Caller)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func writeTextValue(buf *bytes.Buffer, v interface{}) {
	switch t := v.(type) {
	case nil:
		buf.WriteString("<nil>")
	case string:
		if needsQuote(t) {
			fmt.Fprintf(buf, "%q", t)
		} else {
			buf.WriteString(t)
		}
	case error:
		fmt.Fprintf(buf, "%q", t.Error())
	case time.Duration:
		buf.WriteString(t.String())
	case time.Time:
		buf.WriteString(t.Format(time.RFC3339Nano))
	default:
		fmt.Fprintf(buf, "%v", t)
	}
}

func needsQuote(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r <= ' ' || r == '=' || r == '"' {
			return true
		}
	}
	return false
}

// JSONFormatter renders entries as one JSON object per line.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(e *Entry) ([]byte, error) {
	out := make(map[string]interface{}, len(e.Fields)+4)
	for k, v := range e.Fields {
		if err, ok := v.(error); ok {
			out[k] = err.Error()
			continue
		}
		out[k] = v
	}
	out["ts"] = e.Timestamp.Format(time.RFC3339Nano)
	out["level"] = e.Level.String()
	out["msg"] = e.Message
	if e.Caller != "" {
		out["caller"] = e.Caller
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func sortedKeys(m Fields) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
