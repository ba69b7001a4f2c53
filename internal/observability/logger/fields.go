package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos del dominio. Mantener los nombres de clave estables: los dashboards
// filtran por ellos.

func ProjectID(v string) zap.Field { return zap.String("project_id", v) }
func SessionID(v string) zap.Field { return zap.String("session_id", v) }
func UserID(v string) zap.Field { return zap.String("user_id", v) }
func AdminUserID(v string) zap.Field { return zap.String("admin_user_id", v) }
func Username(v string) zap.Field { return zap.String("username", v) }

// Store identifica el store físico: "control-plane" o "tenant:<id>".
func Store(v string) zap.Field { return zap.String("store", v) }
func Driver(v string) zap.Field { return zap.String("driver", v) }

// Token nunca se loguea completo.
func Token(v string) zap.Field {
	if len(v) > 6 {
		v = v[:6] + "…"
	}
	return zap.String("token_prefix", v)
}

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field { return zap.String("op", v) }
func Layer(v string) zap.Field { return zap.String("layer", v) }
func Count(v int) zap.Field { return zap.Int("count", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }
func Err(err error) zap.Field { return zap.Error(err) }
func Method(v string) zap.Field { return zap.String("method", v) }
func Path(v string) zap.Field { return zap.String("path", v) }
func Status(v int) zap.Field { return zap.Int("status", v) }
func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Version(v string) zap.Field { return zap.String("migration_version", v) }
