// Package queue provides the singly linked chain behind the public queue.
//
// A Chain keeps a head index, a tail index and a node count over an
// arena.Arena. Insertion at either end and removal from the head run in
// constant time; Reverse rewires links in a single pass using three tracking
// indices. Validate walks the chain and reports broken bookkeeping as a
// NotValid error.
//
// A Chain is meant for a single owner and has no internal locking.
package queue
