// Package api defines the wire types shared by the daemon's HTTP surface
// and the CLI client, plus the client itself. Keeping both ends on one set
// of structs prevents drift between what the daemon serves and what the CLI
// renders.
package api
