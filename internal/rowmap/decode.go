// Package rowmap convierte filas crudas (columna → valor sin tipo) en registros de
// dominio.
//
// Es el único lugar del módulo que conoce la codificación física:
//   - booleanos guardados como enteros 0/1
//   - arrays/objetos guardados como texto JSON
//   - timestamps como time.Time, texto o epoch según el driver
//
// Todas las funciones son puras. Un valor ausente o malformado nunca produce un
// error: las colecciones caen a vacío (nunca nil) porque el resto del sistema
// asume que esos campos siempre son iterables.
package rowmap

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Booleanos
// ─────────────────────────────────────────────────────────────────────────────

// Bool decodifica una columna booleana. Acepta 0/1 (cualquier entero), bool nativo
// y texto ("1", "true", "t").
func Bool(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case int64:
		return b != 0
	case int32:
		return b != 0
	case int:
		return b != 0
	case int16:
		return b != 0
	case int8:
		return b != 0
	case uint8:
		return b != 0
	case uint64:
		return b != 0
	case float64:
		return b != 0
	case []byte:
		return parseBoolText(string(b))
	case string:
		return parseBoolText(b)
	}
	return false
}

func parseBoolText(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes":
		return true
	}
	return false
}

// EncodeBool codifica un booleano como entero 0/1.
func EncodeBool(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ─────────────────────────────────────────────────────────────────────────────
// Escalares
// ─────────────────────────────────────────────────────────────────────────────

// String decodifica texto. NULL → "".
func String(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case time.Time:
		return s.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}

// OptString decodifica texto opcional. NULL o "" → nil.
func OptString(v any) *string {
	s := String(v)
	if s == "" {
		return nil
	}
	return &s
}

// Int decodifica un entero. Valores no numéricos → 0.
func Int(v any) int {
	switch n := v.(type) {
	case nil:
		return 0
	case int64:
		return int(n)
	case int32:
		return int(n)
	case int:
		return n
	case uint64:
		return int(n)
	case float64:
		return int(n)
	case []byte:
		i, _ := strconv.Atoi(strings.TrimSpace(string(n)))
		return i
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(n))
		return i
	}
	return 0
}

// ─────────────────────────────────────────────────────────────────────────────
// Timestamps
// ─────────────────────────────────────────────────────────────────────────────

// timeLayouts formatos de texto aceptados (SQLite guarda texto; MySQL sin
// parseTime retorna []byte).
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time decodifica un timestamp en UTC. NULL o malformado → zero time.
func Time(v any) time.Time {
	t, _ := parseTime(v)
	return t
}

// OptTime decodifica un timestamp opcional. NULL o malformado → nil.
func OptTime(v any) *time.Time {
	t, ok := parseTime(v)
	if !ok {
		return nil
	}
	return &t
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case int64:
		return time.Unix(t, 0).UTC(), true
	case []byte:
		return parseTimeText(string(t))
	case string:
		return parseTimeText(t)
	}
	return time.Time{}, false
}

func parseTimeText(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ─────────────────────────────────────────────────────────────────────────────
// JSON como texto
// ─────────────────────────────────────────────────────────────────────────────

// StringSlice decodifica un array JSON de strings. Ausente o malformado → []string{}.
func StringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return append([]string{}, s...)
	case []any:
		out := make([]string, 0, len(s))
		for _, it := range s {
			if str, ok := it.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}

	data := jsonBytes(v)
	if len(data) == 0 {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

// Object decodifica un objeto JSON. Ausente o malformado → map vacío.
func Object(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out
	}

	data := jsonBytes(v)
	if len(data) == 0 {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

func jsonBytes(v any) []byte {
	switch s := v.(type) {
	case string:
		return []byte(strings.TrimSpace(s))
	case []byte:
		return s
	}
	return nil
}

// EncodeJSON codifica un valor como texto JSON. Slices nil → "[]", maps nil → "{}".
func EncodeJSON(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case []string:
		if t == nil {
			return "[]"
		}
	case map[string]any:
		if t == nil {
			return "{}"
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}
