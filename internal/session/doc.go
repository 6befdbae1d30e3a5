// Package session wires the credential manager, task registry, remote store, and sync coordinator
// into one application context.
//
// A [Session] is constructed once at startup. [Session.SignIn] runs interactive authorization and
// [Session.RestoreSession] reuses a stored credential; both then connect: locate or create the
// backing spreadsheet, reconcile its headers, load the task set into the registry, and start
// periodic sync. [Session.SignOut] stops the periodic loop, revokes the credential, and clears the
// registry. Any cycle still in flight at that point completes, but its result is discarded.
//
// Task actions mutate the registry and then trigger an immediate sync when signed in.
package session
