// Package stack loads, validates, orders, and renders stack descriptors.
//
// The descriptor is the single source of truth for a deployment: it names
// the project, declares each unit (image or build source, published
// ports, environment, mounts, network membership, startup dependencies),
// and declares the networks units are wired through.
//
// The package is Docker-free by design: everything here operates on the
// parsed model, so validation and rendering work without a daemon.
// Deployment itself lives in the internal/docker package.
package stack
