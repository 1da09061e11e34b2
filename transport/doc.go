// Package transport implements the file-based request/response exchange
// between the host executor and the sandbox worker.
//
// The channel is deliberately networkless: the host writes the script to
// the workspace's request file and polls for the response file; the
// worker polls for the request, consumes and deletes it, and writes the
// response atomically (write-then-rename). Exactly one request may be
// outstanding per sandbox instance.
//
// Each request carries a fencing token that the worker echoes with its
// response. When a request is abandoned (timeout, cancellation), a shared
// long-lived worker may still answer it later; the token lets the next
// exchange recognize that late response as stale and discard it instead
// of delivering it for the wrong request.
package transport
