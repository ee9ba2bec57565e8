// Package e2e runs the service against real brokers and time series storage
// started with testcontainers-go.
package e2e

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxClient reads back what the service wrote to InfluxDB.
type InfluxClient struct {
	bucket string
	client influxdb2.Client
	query  api.QueryAPI
}

// NewInfluxClient creates a client for a running server.
func NewInfluxClient(url, org, bucket, token string) *InfluxClient {
	c := influxdb2.NewClient(url, token)
	return &InfluxClient{bucket: bucket, client: c, query: c.QueryAPI(org)}
}

// Count returns the number of records of a measurement field written in the
// last hour, optionally restricted to one tag value.
func (c *InfluxClient) Count(ctx context.Context, measurement, field string, tags map[string]string) (int, error) {
	flux := fmt.Sprintf(`from(bucket:%q) |> range(start:-1h) |> filter(fn:(r) => r._measurement == %q and r._field == %q)`,
		c.bucket, measurement, field)
	for k, v := range tags {
		flux += fmt.Sprintf(` |> filter(fn:(r) => r[%q] == %q)`, k, v)
	}
	res, err := c.query.Query(ctx, flux)
	if err != nil {
		return 0, fmt.Errorf("query: %w", err)
	}
	defer res.Close()
	n := 0
	for res.Next() {
		n++
	}
	return n, res.Err()
}

// Close releases the underlying client resources.
func (c *InfluxClient) Close() { c.client.Close() }
