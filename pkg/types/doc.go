// Package types defines the core data model shared by every augent
// package: bundle sources, locked bundles, the lockfile, the workspace
// index, platform definitions, cache snapshots, and the filesystem
// interface the engine runs against.
//
// Types here carry no behavior beyond simple accessors; the packages
// that operate on them (resolver, lockfile, transform, index) own the
// algorithms.
package types
