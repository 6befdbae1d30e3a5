// Package auth owns the bearer credential used for every remote store call.
//
// [Manager] holds the current [models.Credential] in memory and mirrors it to a [KeyValueStore] so a
// session survives restarts. It refreshes silently through its [Provider] when the token is within the
// expiry margin, and it is an [oauth2.TokenSource] so HTTP clients always present the latest token.
//
// Only [Manager.Revoke] removes a credential. A failed refresh leaves the stored credential in place,
// except during [Manager.Restore] where an expired credential that cannot be refreshed is discarded.
//
// [GoogleProvider] implements [Provider] against Google's OAuth endpoints using a loopback redirect.
package auth
