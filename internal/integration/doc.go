// Package integration runs the assembled server over real sockets and HTTP.
package integration
