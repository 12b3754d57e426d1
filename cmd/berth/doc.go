// Command berth is the operator CLI for the berth daemon. It talks to
// berthd over its HTTP API for queue inspection and control, and offers
// local configuration utilities.
package main
