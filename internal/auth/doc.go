// Package auth signs and verifies the bearer credentials clients present when
// joining an industry channel.
//
// Credentials are HS256 JWTs carrying the internal user ID as subject, valid
// for one hour. Verification is stateless and safe for concurrent use.
package auth
