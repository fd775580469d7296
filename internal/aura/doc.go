// Package aura owns the device providers and keeps every light in sync with
// the broadcast palette.
//
// A Service is built once per process. Providers are registered with
// AddProvider, then Initialize discovers their devices, disambiguates device
// names within each provider, requests control of the hardware and starts a
// periodic health check that re-requests control on every tick.
// DistributeColors paints a palette over all lights round-robin.
//
// All Service operations are serialized by a single mutex; providers and
// devices are never entered concurrently.
package aura
