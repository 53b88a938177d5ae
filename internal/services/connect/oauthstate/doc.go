// Package oauthstate issues and verifies single-use CSRF states for the
// OAuth connect handshake.
//
// A state is valid for five minutes and can be consumed once. Verification
// never returns a Go error: every rejection, including storage trouble, is a
// VerifyResult with Valid set to false so the callback handler can always
// render a response.
package oauthstate
