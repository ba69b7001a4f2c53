// Package services es el composition root de los servicios del core.
//
// Cada dominio vive en su sub-paquete (session, admin, activity) con su propio
// Deps/NewService. Este paquete los instancia una sola vez y cruza las
// dependencias entre ellos (admin revoca sesiones vía session).
//
//	svcs := services.New(services.Deps{Store: mgr, ...})
//	sess, err := svcs.Sessions.GetByToken(ctx, tok)
package services

import (
	"time"

	"github.com/krapi-cms/krapi-core/internal/security/password"
	"github.com/krapi-cms/krapi-core/internal/services/activity"
	"github.com/krapi-cms/krapi-core/internal/services/admin"
	"github.com/krapi-cms/krapi-core/internal/services/session"
	"github.com/krapi-cms/krapi-core/internal/store"
)

// Deps contiene las dependencias base de todos los servicios.
type Deps struct {
	// ─── Infraestructura ───
	Store store.ControlPlane // normalmente *store.Manager

	// ─── Seguridad ───
	Hasher       password.Hasher // default argon2id
	Policy       *password.Policy
	DefaultAdmin admin.DefaultAdmin

	// ─── Sesiones ───
	SessionTTL        time.Duration
	SessionTokenBytes int

	// ─── Audit trail ───
	ActivityTimeout      time.Duration
	ActivityDefaultLimit int
	ActivityMaxLimit     int

	// Now reloj inyectable; nil = time.Now.
	Now func() time.Time
}

// Services agrupa los servicios por dominio.
type Services struct {
	Sessions session.Service
	Admins   admin.Service
	Activity *activity.Gateway
}

// New crea todos los servicios. Es el único lugar donde se instancian.
func New(d Deps) *Services {
	sessions := session.NewService(session.Deps{
		Store:      d.Store,
		TTL:        d.SessionTTL,
		TokenBytes: d.SessionTokenBytes,
		Now:        d.Now,
	})
	return &Services{
		Sessions: sessions,
		Admins: admin.NewService(admin.Deps{
			Store:    d.Store,
			Hasher:   d.Hasher,
			Policy:   d.Policy,
			Sessions: sessions,
			Default:  d.DefaultAdmin,
			Now:      d.Now,
		}),
		Activity: activity.NewGateway(activity.Deps{
			Store:        d.Store,
			Timeout:      d.ActivityTimeout,
			DefaultLimit: d.ActivityDefaultLimit,
			MaxLimit:     d.ActivityMaxLimit,
		}),
	}
}
