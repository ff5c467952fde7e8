package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type lineFormat string

const (
	formatJSON lineFormat = "json"
	formatKV   lineFormat = "kv"

	tsLayout = "2006-01-02T15:04:05.000Z07:00"
)

// lineFields holds one log line before serialization. Keys are flattened
// dotted paths, values are already reduced to JSON-friendly primitives.
type lineFields map[string]any

func (f lineFields) str(key string) (string, bool) {
	v, ok := f[key]
	if !ok {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case fmt.Stringer:
		return val.String(), true
	default:
		return fmt.Sprint(val), true
	}
}

func (f lineFields) setIfAbsent(key string, v any) {
	if _, ok := f[key]; !ok {
		f[key] = v
	}
}

func (f lineFields) dropEmpty() {
	for k, v := range f {
		switch val := v.(type) {
		case string:
			if val == "" {
				delete(f, k)
			}
		case fmt.Stringer:
			if val.String() == "" {
				delete(f, k)
			}
		case nil:
			delete(f, k)
		}
	}
}

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   lineFormat
	keyOrder []string
}

// structuredHandler is the slog.Handler behind every component logger.
// It flattens groups into dotted keys, enforces the event/component/level
// schema, and serializes either JSON or key=value lines.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return fmt.Errorf("logger: writer not initialized")
	}

	fields := h.assemble(ctx, r)
	line, err := h.serialize(fields)
	if err != nil {
		return err
	}
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(line, '\n')
	}
	return h.cfg.writer.Write(line)
}

// assemble builds the field map for one record: timestamps first, then
// handler-bound attrs, record attrs, context metadata, and finally the
// schema guarantees (event and component always present, rid compacted).
func (h *structuredHandler) assemble(ctx context.Context, r slog.Record) lineFields {
	fields := make(lineFields, 16)
	ts := r.Time.UTC()
	fields["ts"] = ts.Truncate(time.Millisecond).Format(tsLayout)
	fields["level"] = normalizeLevel(r.Level.String())
	if h.cfg.format == formatJSON {
		fields["ts_unix_nano"] = ts.UnixNano()
	}

	for _, a := range h.attrs {
		h.storeAttr(fields, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.storeAttr(fields, a)
		return true
	})

	mergeContextMeta(ctx, fields)
	h.compactRIDField(fields)

	if event, ok := fields.str("event"); !ok || event == "" {
		if r.Message != "" {
			fields["event"] = r.Message
		} else {
			fields["event"] = "unknown"
		}
	}
	if component, ok := fields.str("component"); !ok || component == "" {
		fields["component"] = "app"
	}

	normalizeSchemaFields(fields)
	fields.dropEmpty()
	return fields
}

func (h *structuredHandler) compactRIDField(fields lineFields) {
	rid, ok := fields.str("rid")
	if !ok || rid == "" {
		return
	}
	compact := CompactRID(rid)
	if compact == "" || compact == rid {
		return
	}
	if h.cfg.format == formatJSON {
		fields.setIfAbsent("rid_full", rid)
	}
	fields["rid"] = compact
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func (h *structuredHandler) storeAttr(fields lineFields, attr slog.Attr) {
	prefix := strings.Join(h.groups, ".")
	walkAttr(prefix, attr, func(k string, v slog.Value) {
		if k == "" {
			return
		}
		key, val, ok := reduceValue(k, v)
		if !ok {
			return
		}
		fields[key] = val
	})
}

func (h *structuredHandler) serialize(fields lineFields) ([]byte, error) {
	if h.cfg.format == formatJSON {
		return encodeJSONLine(fields, h.cfg.keyOrder)
	}
	return encodeKVLine(fields, h.cfg.keyOrder), nil
}

// walkAttr flattens nested groups into dotted keys and invokes fn per leaf.
func walkAttr(prefix string, attr slog.Attr, fn func(string, slog.Value)) {
	key := attr.Key
	switch {
	case key == "":
		key = prefix
	case prefix != "":
		key = prefix + "." + key
	}
	if attr.Value.Kind() == slog.KindGroup {
		for _, child := range attr.Value.Group() {
			walkAttr(key, child, fn)
		}
		return
	}
	fn(key, attr.Value)
}

// durationKey renames duration-bearing keys so the unit is explicit.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_duration"):
		return strings.TrimSuffix(key, "_duration") + "_duration_ms"
	case !strings.HasSuffix(key, "_ms"):
		return key + "_ms"
	}
	return key
}

// reduceValue converts a slog.Value to a serializable primitive. Durations
// become rounded milliseconds under a _ms key, times become RFC3339Nano.
func reduceValue(key string, val slog.Value) (string, any, bool) {
	if key == "" {
		return "", nil, false
	}
	switch val.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(val.String()), true
	case slog.KindBool:
		return key, val.Bool(), true
	case slog.KindInt64:
		return key, val.Int64(), true
	case slog.KindUint64:
		u := val.Uint64()
		if u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, u, true
	case slog.KindFloat64:
		return key, val.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(val.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, val.Time().UTC().Format(time.RFC3339Nano), true
	case slog.KindAny:
		return reduceAny(key, val.Any())
	default:
		return key, val.Any(), true
	}
}

func reduceAny(key string, v any) (string, any, bool) {
	switch x := v.(type) {
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	case nil:
		return key, nil, false
	default:
		return key, fmt.Sprint(v), true
	}
}

func normalizeSchemaFields(fields lineFields) {
	if level, ok := fields.str("level"); ok {
		fields["level"] = normalizeLevel(level)
	}
	if s, ok := fields.str("status"); ok && s != "" {
		normalized, _ := normalizeStatus(s)
		fields["status"] = normalized
	}
	if o, ok := fields.str("outcome"); ok && o != "" {
		if normalized, valid := normalizeOutcome(o); valid {
			fields["outcome"] = normalized
		} else {
			delete(fields, "outcome")
		}
	}
}

func mergeContextMeta(ctx context.Context, fields lineFields) {
	if ctx == nil {
		return
	}
	if rid := RIDFrom(ctx); rid != "" {
		fields.setIfAbsent("rid", rid)
	}
	if uid := UserIDFrom(ctx); uid != 0 {
		fields.setIfAbsent("user_id", uid)
	}
	if updateID := UpdateIDFrom(ctx); updateID != 0 {
		fields.setIfAbsent("update_id", updateID)
	}
	if cid := ChatIDFrom(ctx); cid != 0 {
		fields.setIfAbsent("chat_id", cid)
	}
	if hid := HandlerFrom(ctx); hid != "" {
		fields.setIfAbsent("handler", hid)
	}
}

// encodeJSONLine writes ordered keys first, then the rest alphabetically,
// without reflecting the whole map through encoding/json at once.
func encodeJSONLine(fields lineFields, order []string) ([]byte, error) {
	var buf strings.Builder
	buf.WriteByte('{')
	written := make(map[string]struct{}, len(fields))
	emit := func(k string) error {
		data, err := json.Marshal(fields[k])
		if err != nil {
			return err
		}
		if len(written) > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		buf.Write(data)
		written[k] = struct{}{}
		return nil
	}
	for _, key := range order {
		if _, ok := fields[key]; !ok {
			continue
		}
		if err := emit(key); err != nil {
			return nil, err
		}
	}
	rest := make([]string, 0, len(fields))
	for k := range fields {
		if _, done := written[k]; !done {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		if err := emit(key); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return []byte(buf.String()), nil
}

func encodeKVLine(fields lineFields, order []string) []byte {
	var b strings.Builder
	for i, key := range sortedKeys(fields, order) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(kvValue(fields[key]))
	}
	return []byte(b.String())
}

// sortedKeys returns the preferred-order prefix followed by remaining keys
// in alphabetical order.
func sortedKeys(fields lineFields, order []string) []string {
	keys := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, key := range order {
		if _, ok := fields[key]; ok {
			keys = append(keys, key)
			seen[key] = struct{}{}
		}
	}
	tail := len(keys)
	for key := range fields {
		if _, ok := seen[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys[tail:])
	return keys
}

func kvValue(val any) string {
	switch v := val.(type) {
	case string:
		return quoteIfNeeded(v)
	case bool:
		return strconv.FormatBool(v)
	case int, int64, uint64, float64:
		return fmt.Sprint(v)
	default:
		return quoteIfNeeded(fmt.Sprint(v))
	}
}

func quoteIfNeeded(s string) string {
	if strings.IndexFunc(s, func(r rune) bool {
		return r <= 32 || r == '=' || r == '"'
	}) >= 0 {
		return strconv.Quote(s)
	}
	return s
}
