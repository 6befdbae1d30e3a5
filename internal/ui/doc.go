// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI has three views:
//  1. [SignedOutView] : Prompt to sign in (or show why the last attempt failed)
//  2. [TaskView] : Active or finished tasks with live elapsed times
//  3. [InputView] : Name a new task
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// A one-second display tick redraws running timers locally and never touches the network. Sync status arrives
// through the session's update channel, and every task action runs as a command that mutates the registry and syncs.
//
// Keys: a add, s start/stop, f finish, d delete, tab switch lists, S sync now, L sign out, q quit.
package ui
