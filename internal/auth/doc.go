// Package auth authenticates support admins.
//
// # Shared Credential
//
// The gateway has a single shared admin password, configured as a bcrypt
// hash (see `helpdesk-gateway hash-password`). Any admin who knows it can
// log in under their own display name:
//
//	POST /api/admin/login {"name": "Mia", "password": "..."}
//
// # Tokens
//
// A successful login returns an HS256 JWT whose "sub" claim is the admin
// name and whose "role" claim is "admin". The token is presented either in
// the WebSocket join frame or as a Bearer header on the REST API.
//
// # Open Mode
//
// When no credential is configured the Authenticator is nil and callers
// treat every admin join as authorized. The gateway logs a warning at
// startup in that case.
package auth
