// Package models defines the domain entities shared by the session core.
//
//   - [Task] : one trackable unit of work and its timer state
//   - [Credential] : the current delegated-authorization grant
//   - [Schema] : the ordered column layout used to serialize tasks as spreadsheet rows
//
// Task state transitions live in the tasks package; this package only holds the data and derived state.
package models
