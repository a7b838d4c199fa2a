// Package tools provides reusable runtime helpers shared by control-plane
// modules: process spawning primitives consumed by the launcher.
package tools
