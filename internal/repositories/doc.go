// Package repositories implements persistence for tasks and the signed-in credential.
//
// Key Implementations:
//   - [SheetRepository] : task rows in a remote spreadsheet, overwritten wholesale on every save
//   - [RowCodec] : schema-driven mapping between [models.Task] and a row of cells
//   - [KeyValueRepository] : namespaced string key/values in SQLite, used as durable local storage
//
// The remote layout is described by a [models.Schema]. Changing the column set is a schema change,
// and [SheetRepository.Initialize] rewrites a drifted header row to match it without migrating data columns.
package repositories
