// Package all registers every built-in storage backend with the storage
// factory. Import it for side effects:
//
//	import _ "rowcore/internal/storage/all"
//
// after which storage.New and storage.EnsureTable accept the kinds
// "postgres", "mysql", "mssql", "sqlite" and "mongo".
//
// A binary that needs fewer backends can blank-import the backend packages
// it wants instead.
package all

import (
	_ "rowcore/internal/storage/mongo"
	_ "rowcore/internal/storage/mssql"
	_ "rowcore/internal/storage/mysql"
	_ "rowcore/internal/storage/postgres"
	_ "rowcore/internal/storage/sqlite"
)
