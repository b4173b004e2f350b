// Package jwt issues and verifies the short-lived session tokens returned by a
// successful login. The token subject is the normalized identity, which the
// HTTP guard uses as the rate limit key.
package jwt
