// Package websocket serves insight subscribers over gorilla/websocket.
//
// Registry is a single-goroutine actor owning room membership; every connection
// gets its own writer goroutine with a bounded buffer, so a slow client is evicted
// instead of stalling a room. Session drives the per-connection join protocol.
package websocket
