package repository

import "time"

// Project representa un tenant registrado en el control plane.
// DBDriver/DBDSN vacíos significan "usar el template por defecto".
type Project struct {
	ID        string
	Name      string
	Active    bool
	DBDriver  string
	DBDSN     string
	CreatedAt time.Time
}
