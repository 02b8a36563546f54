// Package auth implements passwordless login for the tracker.
//
// Users request a magic link by email; the link carries a single-use
// random token with a short expiry. Redeeming it creates the user on
// first login and issues an HS256 session JWT stored in an HttpOnly
// cookie for thirty days.
//
// Middleware comes in two flavors: RequireUserWeb redirects anonymous
// browsers to /login, RequireUserAPI answers JSON 401s. Both attach the
// resolved user to the request context via WithUser/FromContext.
package auth
