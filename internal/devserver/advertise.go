package devserver

import (
	"fmt"
	"os"

	"github.com/hashicorp/mdns"

	"github.com/alivecode/aliot-go/client"
)

// Advertiser announces the server on the local network so objects configured
// with ws_url "mdns" can find it.
type Advertiser struct {
	server *mdns.Server
}

// Advertise publishes the websocket endpoint at port and path.
func Advertise(instance string, port int, path string) (*Advertiser, error) {
	if instance == "" {
		host, _ := os.Hostname()
		instance = "aliot-devserver-" + host
	}
	service, err := mdns.NewMDNSService(instance, client.ServiceType, "", "", port, nil, []string{"path=" + path})
	if err != nil {
		return nil, fmt.Errorf("failed to describe mDNS service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	return &Advertiser{server: server}, nil
}

func (a *Advertiser) Shutdown() error {
	return a.server.Shutdown()
}
