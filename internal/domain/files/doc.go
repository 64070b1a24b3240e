// Package files implements the per-session file store.
//
// Contents live in a write-through cache in front of a real directory
// on disk. Writes hit both before returning, reads are served from the
// cache when possible, and the on-disk mirror stays complete at all
// times so the preview handler and export can read it directly. All
// client paths are normalized against the session root; traversal that
// would escape it is rejected.
//
// Mutations broadcast file-change and refresh-preview events through
// the session's hub.
package files
