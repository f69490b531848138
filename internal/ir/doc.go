// Package ir provides the record value model for liveview.
//
// Records stored in a collection are usually IRObject values decoded from
// JSON or YAML. This package defines the sealed value types, a total order
// over them (used for view sort keys), and the canonical JSON encoding used
// when raw records are persisted.
//
// This package imports nothing internal. All other internal packages may
// import ir; ir never imports them.
//
// Key design constraints:
//   - NO float types anywhere - numbers are int64 so encodings stay deterministic
//   - Object keys are serialized in RFC 8785 order
//   - Strings are NFC normalized at the serialization boundary
package ir
