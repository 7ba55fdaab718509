// Package solver provides an automatic memory game player.
//
// The Player remembers every card it has turned over and uses that memory to
// finish known pairs before exploring unseen cards. It plays against any
// Board, so the same player drives a local engine in simulations and a remote
// session over the REST API.
package solver
