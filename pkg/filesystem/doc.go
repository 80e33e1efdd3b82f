// Package filesystem provides the OS-backed implementation of
// types.FS. Tests use pkg/testutil.MemoryFS instead.
package filesystem
