package testutils

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const milvusEmbedEtcd = `listen-client-urls: http://0.0.0.0:2379
advertise-client-urls: http://0.0.0.0:2379
quota-backend-bytes: 4294967296
auto-compaction-mode: revision
auto-compaction-retention: '1000'
`

// StartMilvus runs a standalone Milvus with embedded etcd and local storage
// and returns its gRPC address. The container is removed when t ends.
func StartMilvus(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "milvusdb/milvus:v2.5.4",
			ExposedPorts: []string{"19530/tcp", "9091/tcp"},
			Cmd:          []string{"milvus", "run", "standalone"},
			Env: map[string]string{
				"ETCD_USE_EMBED":     "true",
				"ETCD_DATA_DIR":      "/var/lib/milvus/etcd",
				"ETCD_CONFIG_PATH":   "/milvus/configs/embedEtcd.yaml",
				"COMMON_STORAGETYPE": "local",
			},
			Files: []testcontainers.ContainerFile{{
				Reader:            strings.NewReader(milvusEmbedEtcd),
				ContainerFilePath: "/milvus/configs/embedEtcd.yaml",
				FileMode:          0o644,
			}},
			WaitingFor: wait.ForHTTP("/healthz").WithPort("9091/tcp").WithStartupTimeout(120 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Terminate(context.Background())
	})

	s := &IntegrationSuite{T: t}
	return s.endpoint(ctx, c, "19530/tcp")
}
