// Package graph owns the node table of the dependency graph.
//
// The graph is published as immutable snapshots. Writers stage changes in a
// Txn that copies only what it touches and swap the finished snapshot into
// the Store atomically, so readers always see either the previous or the next
// generation and never block on a build.
package graph

import "errors"

// ErrTxnClosed is returned when a committed or discarded transaction is used again
var ErrTxnClosed = errors.New("transaction already closed")
