// Package metrics provides Prometheus metrics for observability.
//
// Exposed metrics:
//   - ybroute_routing_plans_total{path}: query plans by path (partition, fallback)
//   - ybroute_routing_unroutable_total{reason}: statements planned without a key
//   - ybroute_routing_bucket_seconds: bucket computation latency
//   - ybroute_splits_*: split catalog refresh latency, failures, skipped records
//     and the current table count
//   - ybroute_metadata_*: metadata store operation latency and counts
//
// Each metrics type implements the recorder interface of the package it
// observes, so those packages do not import this one:
//
//	routingMetrics := metrics.NewRoutingMetrics()
//	policy := routing.NewPartitionAwarePolicy(fallback, routing.WithRecorder(routingMetrics))
//
//	splitMetrics := metrics.NewSplitMetrics()
//	refresher := topology.NewSplitRefresher(store, registry, catalog,
//		topology.RefresherConfig{ClusterID: id, Metrics: splitMetrics})
//
//	server := metrics.NewServer(":9090")
//	server.Start()
package metrics
