// Package refresher rebuilds the manifest on a timer and keeps the latest result.
//
// Every rebuild is diffed against the previous manifest and the changes are
// logged. The previous manifest survives restarts through an optional
// snapshot repository.
package refresher
