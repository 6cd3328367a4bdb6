// Package routing implements partition-aware load balancing for YCQL.
//
// Key Extraction
//
// A prepared statement carries a RoutingSpec: the bind positions of its hash
// key columns and their types. KeyExtractor serializes the bound values at
// those positions, encodes them canonically and hashes the result into a
// 16-bit partition bucket (see package partition). Statements that cannot be
// routed (no hash key columns, a value that does not match its column type,
// an unprepared query) are planned by the fallback policy; the reason is
// logged at debug level and counted.
//
// A batch takes the bucket of its first routable bound statement.
//
// Query Plans
//
// For a routable statement the plan yields the replicas owning the bucket
// first, then the fallback policy's hosts that are not owners:
//
//	owners (up, leader first)  ->  fallback plan minus hosts already seen
//
// At YB_CONSISTENT_PREFIX the owners are shuffled and only hosts the
// fallback classifies as local are used, so reads spread across nearby
// followers. At every other level owners keep their stored order, which
// puts the tablet leader first.
//
// A plan reflects the cluster as it was when NewQueryPlan was called: the
// split snapshot, host up/down flags and distances are all read then, and
// each host appears at most once. Hosts are then handed out one at a time.
package routing
