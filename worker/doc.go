// Package worker implements the in-sandbox runtime loop.
//
// One worker runs per sandbox instance for the instance's whole
// lifetime. On startup it loads the staged dataset snapshot once into a
// persistent Starlark execution context together with a small fixed
// allow-list of analysis and charting bindings, then services requests
// from the file transport: execute the script, capture output, classify
// the designated result binding, rasterize any drawn chart, and write a
// response. A crashed script never crashes the loop.
package worker
