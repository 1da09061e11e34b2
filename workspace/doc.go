// Package workspace manages the ephemeral exchange directory shared
// between the host executor and one sandbox instance.
//
// A workspace holds exactly three well-known files: the staged dataset
// snapshot, the pending request, and the pending response. Workspaces
// created by this package are exclusively owned and destroyed on stop;
// pre-provisioned directories can be opened instead, in which case only
// the pending exchange files are ever touched.
package workspace
