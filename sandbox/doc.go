// Package sandbox provides the executor supervisor for untrusted
// analysis scripts.
//
// A Supervisor owns exactly one sandbox instance and one workspace for
// its lifetime. It stages the dataset snapshot, pre-validates script
// syntax without touching the sandbox, exchanges requests over the file
// transport with a bounded wait, and guarantees teardown on every exit
// path including abandonment. Two instance strategies exist: an
// ephemeral Docker container per supervisor and a long-lived worker
// behind a pre-provisioned data directory.
package sandbox
