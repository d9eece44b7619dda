// Package discovery names the service-discovery identity this server
// publishes (spec §6.6). It implements no mDNS itself — it only holds the
// constants an external registrar needs to advertise the bound port.
package discovery

const (
	// ServiceType is the mDNS/DNS-SD service type an external registrar
	// would advertise this server under.
	ServiceType = "_boardgo._tcp"

	// DefaultInstanceName is the human-readable instance name used absent
	// any operator override.
	DefaultInstanceName = "Board Go"
)
