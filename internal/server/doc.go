// Package server runs the short-lived loopback HTTP server that receives the OAuth redirect.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] registers
// method-qualified patterns on an [http.ServeMux] and wraps every handler in the middleware stack,
// first added running outermost. [RequestLogger] is the only middleware in use.
//
// # OAuth Callback Handler
//
// [OAuthHandler] validates the state parameter, exchanges the authorization code (with the PKCE verifier)
// and delivers exactly one [OAuthResult] through its result channel. Later callbacks are rejected.
//
// # Loopback Server
//
// [Loopback] binds the redirect address before the browser is opened, so a port conflict fails the
// sign-in immediately rather than after the user has consented.
package server
