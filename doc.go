// Package alertidx is the composition root of the alert index access layer.
//
// It connects the facade (pkg/dao) with the backend adapters: an in-process
// store, an embedded pebble database, a directory of JSON or YAML files and a
// remote index service reached over HTTP, optionally with Kerberos.
//
// Features:
//
//   - **Latest-version retrieval**: single and batched lookups routed to the index of each sensor type.
//   - **Versioned writes**: every write bumps the document version; check-and-set is opt-in.
//   - **Patches**: field-level set/remove/append applied to the latest stored version.
//   - **Comments**: add and remove analyst notes on an alert.
//   - **Search and group**: filter expressions, sorting, paging and nested counts.
//   - **Typed Retrieval**: generic wrapper (`NewTypedRepository[T]`) decoding alert fields into a struct.
//
// Usage:
//
//	d, err := alertidx.Open(ctx, alertidx.AccessConfig{
//		URI:     "kv:///var/lib/alertidx",
//		Indices: map[string]string{"bro": "bro_index"},
//	}, alertidx.WithLogger(logger))
//
//	doc, err := d.GetLatest(ctx, guid, "bro")
package alertidx
