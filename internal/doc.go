// Package edgemeter implements an ingestion and query service for networked
// energy meters.
//
// # Architecture
//
// The service is structured into several key packages:
//   - meter: line protocol client that pulls a reading dump from a meter
//   - parser: turns a dump into channel readings stamped with the poll hour
//   - database: SQLite shards per device and month, plus yearly archives
//   - aggregation: hourly, daily and monthly diffs and per-channel rollups
//   - ingest: one poll from fetch to transactional write
//   - scheduler: cron-driven polling of every enabled device
//   - registry: devices, channels and timezones from config or Postgres
//   - mirror: optional copy of readings into InfluxDB
//   - grpc: query service and its interceptors
//   - httpserver: metrics, health and device listing
//
// Key Features
//
//   - Sharded storage:
//     Each poll is written in one exclusive transaction into the shard of
//     its device and month. Range reads walk the month shards in order and
//     skip months that were never written.
//
//   - Consumption diffs:
//     Cumulative counters are bucketed per channel. A bucket closes on the
//     first reading in a later hour, day or month than the baseline; ranges
//     shorter than a bucket still yield one trailing diff.
//
//   - Timezones:
//     Interval boundaries are rendered in UTC, the device timezone and the
//     host timezone.
//
// Example Usage
//
//	client := server.NewQueryServiceClient(conn)
//	req, _ := structpb.NewStruct(map[string]interface{}{
//	    "device":      "meter-01",
//	    "from":        "2024-03-01T00:00:00Z",
//	    "to":          "2024-03-31T23:59:59Z",
//	    "granularity": "daily",
//	})
//	resp, err := client.Aggregate(ctx, req)
//
// For more information about specific packages, see their respective
// documentation.
package edgemeter
