// Package universe tracks running world-zone instances and brokers the
// zone-transfer affirmation handshake between client-facing workers and
// those instances.
//
// All state here is owned by the single-threaded tick loop; there is no
// locking. The Registry is the only component that creates or destroys
// Instances, and removal always drains queued work back into the cluster
// first.
package universe
