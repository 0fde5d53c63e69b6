// Package all registers every storage backend. Binaries blank-import it.
package all

import (
	_ "github.com/microsoft/go-mssqldb"

	_ "github.com/Nterah/QualiPro/internal/storage/mssql"
	_ "github.com/Nterah/QualiPro/internal/storage/postgres"
	_ "github.com/Nterah/QualiPro/internal/storage/sqlite"
)
