// Package engine implements the liveview record collection and its live views.
//
// A Collection holds an append-mostly, optionally keyed sequence of records.
// Each View over a collection applies a filter, a sort order, a reversal
// flag, and a visible window, and keeps its materialized output in sync with
// every mutation of the collection without re-deriving it.
//
// ARCHITECTURE:
//
// Synchronous Fan-out:
// Every mutation (Append, Update, Delete, Shift, Clear) first updates the
// collection's own indices, then calls processEvent on every attached view.
// Each view updates its output and notifies its listeners before the next
// view runs. Nothing is queued and nothing runs in the background, so a
// mutation has fully propagated by the time the call returns.
//
// Event Processing Flow:
//  1. Collection validates the mutation (keys, indices); errors abort with no state change
//  2. Collection updates entries, key index, and shift offset
//  3. processEvent() routes the mutation to the matching view handler
//  4. The handler updates the view's output incrementally (or rebuilds it)
//  5. Listeners receive Shift / Updated / Reset / WindowChange notifications
//
// View-local State:
// Entries are shared by all views, but each view keeps its own side table
// (entry id -> visibility and approximate position). Dropping a view drops
// its table; no view ever touches another view's state.
//
// Thread-safety: none. A Collection and its views must be used from one
// goroutine, or guarded by the caller with a mutex.
//
// INVARIANTS:
//   - Insertion ids are strictly increasing and never reused
//   - A view's output holds exactly the entries passing its filter, ordered by
//     (sort key, insertion id) when sorted, else by insertion id
//   - keyIndex[k] + shiftOffset is the position of k's record after every mutation
package engine
