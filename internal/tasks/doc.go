// Package tasks holds the in-memory task list and keeps it synchronized with the remote store.
//
// # Registry
//
// [Registry] owns the task set. Start/stop accumulate run segments into elapsed time, finish is terminal for
// timing, and delete is a permanent tombstone so the deletion reaches the remote store on the next save.
// Queries return copies, so callers never share timestamps with the registry.
//
// # Coordinator
//
// [Coordinator] pushes the full task set (running tasks and tombstones included) to a [Store]
// after ensuring the credential is fresh. A 401 from the store triggers a credential refresh and a retry,
// bounded by the configured attempt count. Any other failure ends the cycle; the next trigger starts over.
//
// At most one cycle is in flight. [Coordinator.SyncNow] drops a request that arrives while busy, and
// [Coordinator.Flush] waits for the in-flight cycle before running its own. The periodic loop started by
// [Coordinator.Start] wakes one interval after the last cycle, and [Coordinator.Tick] skips when the last
// successful sync is more recent than the interval.
//
// # Status Updates
//
// Every state change is published as a [StatusUpdate] on [Coordinator.Updates].
// Sends use select with default, so a slow or absent reader never stalls a sync.
package tasks
