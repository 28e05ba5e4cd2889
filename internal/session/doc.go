// Package session holds per-conversation state in memory with per-key
// locking and TTL expiry.
//
// [Store.GetOrCreate] resolves or mints a conversation id,
// [Store.WithLock] serializes turns for one conversation and commits
// mutations atomically, and [Store.Sweep] removes idle sessions. A
// background sweeper runs via [Store.StartSweeper].
//
// # Concurrency
//
// Turns for one conversation never run concurrently: WithLock admits a
// single holder per id, so waiting turns apply in the order their locks
// are granted. Distinct conversations proceed independently. Committed
// states are never mutated in place; every mutation happens on a private
// copy that is published only on success, so a failed or cancelled turn
// leaves no trace.
//
// # Local state
//
// [SaveCurrentConversationID] and [LoadCurrentConversationID] persist
// the CLI's active conversation to ~/.minairo/current_conversation using
// an atomic write (temp file + rename) guarded by
// [github.com/gofrs/flock].
package session
