// Package dal registra todos los adapters de store. Importarlo con blank
// import desde main (o desde tests que necesiten drivers reales).
package dal

import (
	_ "github.com/krapi-cms/krapi-core/internal/store/adapters/mysql"
	_ "github.com/krapi-cms/krapi-core/internal/store/adapters/pg"
	_ "github.com/krapi-cms/krapi-core/internal/store/adapters/sqlite"
)
