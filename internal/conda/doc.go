// Package conda wraps the external environment manager behind explicit
// operations with checked exit status: environment creation and removal,
// activation probing, dependency manifest installation and notebook kernel
// registration.
//
// Process invocation goes through the CommandRunner seam so the bootstrap
// service can be tested without an environment manager installed.
package conda
