// Package logger expone el logger Zap del proceso y campos estándar del dominio.
//
// Inicialización (una vez en cmd/krapi):
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
// En servicios, con contexto:
//
//	logger.From(ctx).Info("session consumed", logger.SessionID(id))
//
// Los componentes de larga vida (store.Manager, Janitor) reciben un *zap.Logger
// ya nombrado; si reciben nil usan Named(componente).
package logger
