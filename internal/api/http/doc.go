/*
Package http exposes the shell and provisioning services as a JSON API.

Every response carries a "success" flag. Domain errors are mapped onto
status codes by statusFor; a command that times out still returns the
output collected before the deadline.
*/
package http
