// Package auth caches the client-credentials bearer token used for every catalog call.
//
// A [Cache] hands out a token that stays valid for at least the configured margin. Reads of a
// valid token are lock-free. When the token is missing, close to expiry or rejected upstream,
// exactly one refresh runs and every concurrent caller shares its result.
//
// A failed refresh leaves the previous token visible through [Cache.Peek] for diagnostics,
// but [Cache.Token] never returns it again.
package auth
