// Package task tracks long-running provisioning work that clients poll.
//
// A task moves pending → running → complete | failed. Terminal phases are
// final. Lookups of unknown IDs return a snapshot in PhaseUnknown so a
// poller never has to distinguish "gone" from "never existed".
package task
