// Package bootstrap implements the provisioning pipeline: create the pinned
// conda environment, verify its activation, install the dependency manifest,
// register the notebook kernel, fetch the exercise dataset and restore the
// base environment, persisting a receipt of the run.
//
// Every external operation is invoked explicitly and its status checked.
// The KeepGoing option tolerates failures after the activation check,
// logging them and continuing instead of stopping.
package bootstrap
