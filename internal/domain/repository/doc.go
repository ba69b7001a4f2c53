// Package repository define los registros de dominio y los contratos que el core
// expone a la capa de rutas (excluida de este módulo).
//
// Los registros son tipos Go fuertemente tipados; nunca contienen codificaciones
// físicas (booleanos como enteros, JSON como texto). Esa traducción vive sólo en
// internal/rowmap.
//
// Arquitectura:
//
//	┌─────────────────────────────────────────────────────┐
//	│        Route handlers (fuera de este módulo)        │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	                        ▼
//	┌─────────────────────────────────────────────────────┐
//	│        domain/repository (registros + contratos)    │
//	│  AdminUserRepository, SessionRepository, Activity   │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	         ┌──────────────┼──────────────┐
//	         ▼              ▼              ▼
//	┌─────────────┐  ┌─────────────┐  ┌─────────────┐
//	│  services/  │  │  services/  │  │  services/  │
//	│    admin    │  │   session   │  │  activity   │
//	└─────────────┘  └─────────────┘  └─────────────┘
//	                        │
//	                        ▼
//	               store.Manager (control plane | tenant)
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Errores de dominio están en errors.go
package repository
