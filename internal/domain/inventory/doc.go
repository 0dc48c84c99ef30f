// Package inventory persists the list of game servers installed on the host.
package inventory
