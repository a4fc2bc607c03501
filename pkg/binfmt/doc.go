// Package binfmt loads program images and starts them as tasks.
//
// A launch goes through a fixed sequence of stages: the argument vector is
// copied (or borrowed), the image is loaded by the first registered Format
// that recognizes it, the loaded image is started as a task and, where the
// platform supports it, an exit hook is registered so that the image is
// unloaded automatically when the task terminates. A failure at any stage
// releases everything acquired by the earlier stages before Exec returns.
//
// Which stages apply is decided by the Capabilities given to the Executor:
//
//	NeedsArgumentCopy   the task cannot reach the caller's memory, so the
//	                    argument vector is copied into an owned buffer
//	SupportsAutoUnload  exit hooks are available; the launch record outlives
//	                    Exec and is released by the hook
//
// Without auto unload nothing owns the loaded image once its task runs; the
// image resources stay allocated for the lifetime of the launcher.
package binfmt
