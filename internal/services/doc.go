// Package services wraps the Google HTTP APIs the session core talks to.
//
// # Google Service
//
// [GoogleService] is the remote tabular store surface: Drive search by name and mime type,
// spreadsheet creation, and read/write/clear of A1 ranges through the Sheets v4 API.
// It also resolves the signed-in account's email through the userinfo endpoint.
//
// Every request is authorized through an [oauth2.Transport] whose token source is consulted per request,
// so a credential refreshed by the auth package is picked up by the next call without rebuilding the client.
// Requests pass through a [rate.Limiter] to stay within per-user Sheets quotas.
//
// # API Service
//
// [APIService] performs raw HTTP calls (form posts, GETs) against endpoints with no generated client,
// such as the OAuth token revocation endpoint.
//
// # Error Handling
//
// Failed calls are wrapped with [shared.ErrAPIRequest]. [StatusCode] recovers the HTTP status from an error chain,
// and [IsUnauthorized] reports the 401 that signals an invalid credential.
package services
