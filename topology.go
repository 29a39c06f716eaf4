package provision

import (
	"context"

	"github.com/autom8ter/provision/driver"
	"github.com/autom8ter/provision/logging"
)

// Topology describes the deployment a run provisions against
type Topology struct {
	Clustered bool     `json:"clustered"`
	Servers   []string `json:"servers,omitempty"`
}

// ProbeTopology asks the server for its cluster health. Any failure means a single server.
func ProbeTopology(ctx context.Context, client driver.Client, logger logging.Logger) Topology {
	if client == nil {
		return Topology{}
	}
	health, err := client.Cluster(ctx)
	if err != nil {
		logger.Debug(ctx, "cluster probe failed, assuming single server", map[string]any{"error": err.Error()})
		return Topology{}
	}
	return Topology{Clustered: true, Servers: health.Servers}
}
