// ABOUTME: Build-time version constants
// ABOUTME: Version and Product are reported in the Hello handshake
package version

const (
	// Version is the client release version.
	Version = "0.1.0"
	// Product is the client display name.
	Product = "resonate-go"
	// Manufacturer identifies the software vendor. It is not part of
	// the Hello payload.
	Manufacturer = "Resonate Project"
)
