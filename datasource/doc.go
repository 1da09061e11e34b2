// Package datasource supplies the tabular dataset snapshot staged into
// the sandbox.
//
// The engine only reads from a data source: GetFull is called once per
// sandbox start to produce an immutable snapshot, and later mutations of
// the underlying source are never reflected. Chain ranks several
// providers and falls back in order, replacing ad-hoc trial-and-error
// client selection with an explicit policy.
package datasource
