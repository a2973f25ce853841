// Package auth issues and verifies access tokens and resolves them into
// request principals.
//
// Access tokens are HMAC-signed JWTs whose subject is the user name:
//
//	tokens, _ := auth.NewTokenService(secret, "HS256", 15*time.Minute)
//	tok, _ := tokens.Issue("admin", 1)
//
// PrincipalResolver verifies a credential and loads the user, the user's
// role and that role's resources in one pass. Nothing is looked up for a
// credential that fails verification, and the credential itself is never
// logged.
//
// BcryptHasher implements users.PasswordHasher.
package auth
