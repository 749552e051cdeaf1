// Package jwt issues and verifies the signed access and refresh tokens of the
// panel. Both token kinds carry a type discriminator, and a token is only
// accepted for the use its type names.
package jwt
