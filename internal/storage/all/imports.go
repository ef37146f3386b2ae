// Package all wires the built-in storage backends into the storage factory.
// Import it for side effects only:
//
//	import _ "extimport/internal/storage/all"
//
// which makes "postgres", "mssql", "mysql" and "sqlite" available to storage.New and
// storage.EnsureTable.
package all

import (
	_ "extimport/internal/storage/mssql"
	_ "extimport/internal/storage/mysql"
	_ "extimport/internal/storage/postgres"
	_ "extimport/internal/storage/sqlite"
)
