package client

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service advertised by coordination servers that
// accept object connections over websocket.
const ServiceType = "_aliot-ws._tcp"

const defaultDiscoveryTimeout = 5 * time.Second

// DiscoveredService represents a discovered coordination server
type DiscoveredService struct {
	ServiceName string
	Address     string
	Port        int
	Path        string
	TXTRecords  []string
}

// URL is the websocket endpoint of the service.
func (d *DiscoveredService) URL() string {
	path := d.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("ws://%s:%d%s", d.Address, d.Port, path)
}

// serviceFromEntry turns an mDNS answer into a service. The websocket path
// comes from a "path=" TXT record and defaults to "/".
func serviceFromEntry(entry *mdns.ServiceEntry) (*DiscoveredService, error) {
	var address string
	if entry.AddrV4 != nil {
		address = entry.AddrV4.String()
	} else if entry.AddrV6 != nil {
		address = fmt.Sprintf("[%s]", entry.AddrV6.String())
	} else {
		return nil, fmt.Errorf("no valid address found for service %q", entry.Name)
	}

	service := &DiscoveredService{
		ServiceName: entry.Name,
		Address:     address,
		Port:        entry.Port,
		Path:        "/",
		TXTRecords:  entry.InfoFields,
	}
	for _, field := range entry.InfoFields {
		if p, ok := strings.CutPrefix(field, "path="); ok && p != "" {
			service.Path = p
		}
	}
	return service, nil
}

// DiscoverWebSocketService discovers the first coordination server answering
// on the local network.
func DiscoverWebSocketService(timeout time.Duration) (*DiscoveredService, error) {
	if timeout == 0 {
		timeout = defaultDiscoveryTimeout
	}

	entriesCh := make(chan *mdns.ServiceEntry, 4)
	params := mdns.DefaultParams(ServiceType)
	params.Entries = entriesCh
	params.Timeout = timeout
	params.DisableIPv6 = true

	// Start discovery in background
	go func() {
		defer close(entriesCh)
		if err := mdns.Query(params); err != nil {
			slog.Debug("mDNS query failed", "service", ServiceType, "error", err)
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case entry, ok := <-entriesCh:
			if !ok {
				return nil, fmt.Errorf("no %s service found", ServiceType)
			}
			service, err := serviceFromEntry(entry)
			if err != nil {
				slog.Debug("Skipping mDNS answer", "error", err)
				continue
			}
			slog.Info("Discovered coordination server",
				"service_name", service.ServiceName,
				"address", service.Address,
				"port", service.Port,
				"path", service.Path,
			)
			go drain(entriesCh)
			return service, nil

		case <-timer.C:
			go drain(entriesCh)
			return nil, fmt.Errorf("mDNS discovery timeout for %s", ServiceType)
		}
	}
}

// DiscoverWebSocketURL resolves the websocket URL of the first discovered
// server.
func DiscoverWebSocketURL(timeout time.Duration) (string, error) {
	service, err := DiscoverWebSocketService(timeout)
	if err != nil {
		return "", err
	}
	return service.URL(), nil
}

func drain(ch <-chan *mdns.ServiceEntry) {
	for range ch {
	}
}
