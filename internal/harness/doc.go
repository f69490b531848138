// Package harness runs YAML scenarios against a live collection and its views.
//
// A scenario seeds a collection, configures views, applies a sequence of
// mutation and configuration steps, and records every notification every
// view emits. Assertions then check outputs, notification sequences, and
// collection invariants.
//
// # Scenario Format
//
//	name: sorted_shift
//	description: "Bulk shift on a sorted view is incremental below the threshold"
//	collection:
//	  key: id
//	  limit: 100
//	  drop_factor: 0.1
//	records:
//	  - { id: c }
//	  - { id: b }
//	views:
//	  - id: default
//	    sort: id
//	    window: [0, 100]
//	steps:
//	  - op: shift
//	    amount: 1
//	  - op: append
//	    record: { id: b }
//	    expect_error: DUPLICATE_KEY
//	assertions:
//	  - type: output
//	    field: id
//	    values: [b]
//	  - type: notifications
//	    step: 0
//	    events: ["shift(1,-1) n=1 in"]
//
// # Step Ops
//
// append, update, delete, delete_key, upsert, shift, clear (collection);
// set_sort, set_filter, set_reversed, set_window, reset, rebuild, fork,
// detach (views); roundtrip (serialize then deserialize).
//
// # Assertion Types
//
//   - output: a view's output, as whole records or projected on one field
//   - notifications: the exact notifications of a view, optionally for one step
//   - notification_count: how many notifications of a kind a view emitted
//   - size: the collection length
//   - keys_consistent: every key resolves to the record holding it
//
// # Deterministic Testing
//
// Seed records are appended and views configured before listeners attach,
// so traces start at the first step. Forks without an id get sequential ids
// (fork-1, fork-2, ...) and logs are discarded. The same scenario always
// produces the same trace, which RunWithGolden compares byte for byte.
package harness
