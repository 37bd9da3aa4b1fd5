// Package auth validates bearer tokens and enforces scopes for netctl.
//
// Tokens are JWTs signed with HS256 (shared secret) or RS256 (PEM public
// key). Reading configuration needs the read scope, changing it needs
// control, and the event stream needs telemetry. /api/v1/health is open.
package auth
