// Package chat provides a volatile in-memory implementation of
// core.ChatStore. It is safe for concurrent access and best suited for tests
// or embedding hosts that keep chat data in process; applications with
// durable storage supply their own ChatStore.
package chat
