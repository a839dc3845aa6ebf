package log

import (
	"context"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
)

const redacted = "[REDACTED]"

// bridgeHandler lets the slog front end feed BaseLogger's formatter and
// outputs. Attributes bound with WithAttrs are flattened into base once, so
// Handle only copies them.
type bridgeHandler struct {
	logger  *BaseLogger
	base    Fields
	prefix  string
	redact  map[string]struct{}
	sampler *sampler
}

type bridgeOption func(*bridgeHandler)

// bridgeRedact replaces the values of keys with a placeholder, whether they
// were bound with With or passed on the call.
func bridgeRedact(keys []string) bridgeOption {
	return func(h *bridgeHandler) {
		if len(keys) == 0 {
			return
		}
		h.redact = make(map[string]struct{}, len(keys))
		for _, k := range keys {
			h.redact[k] = struct{}{}
		}
	}
}

// bridgeSample keeps the first initial records per level and message, then
// every thereafter-th one. thereafter <= 0 disables sampling.
func bridgeSample(initial, thereafter int) bridgeOption {
	return func(h *bridgeHandler) {
		if thereafter > 0 {
			h.sampler = newSampler(initial, thereafter)
		}
	}
}

func newBridgeHandler(logger *BaseLogger, opts ...bridgeOption) *bridgeHandler {
	h := &bridgeHandler{logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *bridgeHandler) Enabled(_ context.Context, level slog.Level) bool {
	return *h.logger.level <= fromSlogLevel(level)
}

// put stores a under its group-qualified key, expanding nested groups.
func (h *bridgeHandler) put(dst Fields, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	key := prefix + a.Key
	if v.Kind() == slog.KindGroup {
		sub := prefix
		if a.Key != "" {
			sub = key + "."
		}
		for _, ga := range v.Group() {
			h.put(dst, sub, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	if _, ok := h.redact[a.Key]; ok {
		dst[key] = redacted
		return
	}
	dst[key] = v.Any()
}

func (h *bridgeHandler) Handle(_ context.Context, r slog.Record) error {
	if h.sampler != nil && !h.sampler.allow(r.Level, r.Message) {
		return nil
	}

	fields := make(Fields, len(h.base)+r.NumAttrs())
	for k, v := range h.base {
		fields[k] = v
	}
	fatal := false
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "fatal" && h.prefix == "" {
			fatal = a.Value.Kind() == slog.KindBool && a.Value.Bool()
			return true
		}
		h.put(fields, h.prefix, a)
		return true
	})

	entry := &Entry{
		Level:     fromSlogLevel(r.Level),
		Message:   r.Message,
		Fields:    fields,
		Timestamp: r.Time,
		Caller:    callerOf(r.PC),
	}
	if fatal {
		entry.Level = FatalLevel
	}
	if err, ok := fields["error"].(error); ok {
		entry.Error = err
	}

	formatted, err := h.logger.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.logger.mu.Lock()
	defer h.logger.mu.Unlock()
	for _, out := range h.logger.outputs {
		_ = out.Write(entry, formatted)
	}
	return nil
}

func callerOf(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	f, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if f.File == "" {
		return ""
	}
	return filepath.Base(f.File) + ":" + strconv.Itoa(f.Line)
}

func (h *bridgeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	nh := *h
	nh.base = make(Fields, len(h.base)+len(attrs))
	for k, v := range h.base {
		nh.base[k] = v
	}
	for _, a := range attrs {
		h.put(nh.base, h.prefix, a)
	}
	return &nh
}

// WithGroup qualifies later attribute keys as "name.key".
func (h *bridgeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

type sampler struct {
	mu         sync.Mutex
	initial    uint64
	thereafter uint64
	seen       map[string]uint64
}

func newSampler(initial, thereafter int) *sampler {
	s := &sampler{thereafter: uint64(thereafter), seen: make(map[string]uint64)}
	if initial > 0 {
		s.initial = uint64(initial)
	}
	return s
}

func (s *sampler) allow(level slog.Level, msg string) bool {
	key := level.String() + "|" + msg
	s.mu.Lock()
	n := s.seen[key]
	s.seen[key] = n + 1
	s.mu.Unlock()
	return n < s.initial || (n-s.initial)%s.thereafter == 0
}

func toSlogLevel(level Level) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel, FatalLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func fromSlogLevel(level slog.Level) Level {
	switch {
	case level < slog.LevelInfo:
		return DebugLevel
	case level < slog.LevelWarn:
		return InfoLevel
	case level < slog.LevelError:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

func attrsFromMap(m Fields) []slog.Attr {
	if len(m) == 0 {
		return nil
	}
	attrs := make([]slog.Attr, 0, len(m))
	for k, v := range m {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func attrsFromFieldSlice(fields []Field) []slog.Attr {
	if len(fields) == 0 {
		return nil
	}
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	return attrs
}

// argsToAttrs pairs key/value args. A non-string key or a trailing value is
// kept under "argN".
func argsToAttrs(args []interface{}) []slog.Attr {
	if len(args) == 0 {
		return nil
	}
	attrs := make([]slog.Attr, 0, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			attrs = append(attrs, slog.Any("arg"+strconv.Itoa(i), args[i]))
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = "arg" + strconv.Itoa(i)
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}

func attrsToAny(attrs []slog.Attr) []any {
	out := make([]any, len(attrs))
	for i, a := range attrs {
		out[i] = a
	}
	return out
}
