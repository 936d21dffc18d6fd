// ABOUTME: Version and product identification constants
// ABOUTME: Reported in feed handshakes and the CLI banner
package version

const (
	// Version is the release version
	Version = "0.3.0"

	// Product is the product name
	Product = "singkeys"

	// Manufacturer identifies the publisher
	Manufacturer = "harperreed"
)
