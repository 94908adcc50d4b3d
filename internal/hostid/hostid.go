// ABOUTME: Stable host identity derived from a hardware address
// ABOUTME: Falls back to a generated UUID when no interface MAC is available
package hostid

import (
	"crypto/sha1"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
)

// fallbackID generates the fallback UUID once, so every Resolve call in
// this process returns the same id.
var fallbackID = sync.OnceValue(uuid.NewString)

// Resolve returns a stable identifier for this machine: the SHA-1 of
// the first non-loopback interface's hardware address, formatted as a
// UUID-like string. If no interface carries a hardware address (common
// in containers), it falls back to a freshly generated random UUID —
// stable only for the process lifetime, not across runs.
func Resolve() (string, error) {
	mac, err := firstHardwareAddr()
	if err != nil {
		return "", fmt.Errorf("hostid: enumerate interfaces: %w", err)
	}
	if mac == nil {
		return fallbackID(), nil
	}
	sum := sha1.Sum(mac)
	id, err := uuid.FromBytes(sum[:16])
	if err != nil {
		return "", fmt.Errorf("hostid: derive uuid: %w", err)
	}
	return id.String(), nil
}

func firstHardwareAddr() (net.HardwareAddr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		return iface.HardwareAddr, nil
	}
	return nil, nil
}
