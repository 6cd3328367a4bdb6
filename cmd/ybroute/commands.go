package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dray-io/ybroute/internal/cqltype"
	"github.com/dray-io/ybroute/internal/metadata/keys"
	"github.com/dray-io/ybroute/internal/partition"
	"github.com/dray-io/ybroute/internal/routing"
	"github.com/dray-io/ybroute/internal/topology"
)

func runBucket(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("bucket", flag.ExitOnError)
	var key keyColumns
	fs.Var(&key.types, "type", "CQL type of the next hash key column (repeatable)")
	fs.Var(&key.values, "value", "Value of the next hash key column (repeatable)")

	fs.Usage = func() {
		fmt.Println(`Usage: ybroute bucket -type <type> -value <value> [-type ... -value ...]

Compute the canonical key bytes, partition bucket and token of a row key.

Example:
  ybroute bucket -type int -value 42 -type text -value eu-west

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	cols, err := key.parse()
	if err != nil {
		return err
	}
	return printBucket(out, cols)
}

func printBucket(out io.Writer, cols []column) error {
	serializer := cqltype.NewSerializer(cqltype.DefaultProtocolVersion)
	parts := make([]partition.KeyPart, len(cols))
	for i, c := range cols {
		raw, err := serializer.Serialize(c.Type, c.Value)
		if err != nil {
			return fmt.Errorf("key column %d: %w", i, err)
		}
		parts[i] = partition.KeyPart{Type: c.Type, Value: raw}
	}
	buf, err := partition.EncodeKey(parts...)
	if err != nil {
		return err
	}
	bucket := partition.BucketFor(buf)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "canonical:\t%s\n", hex.EncodeToString(buf))
	fmt.Fprintf(w, "bucket:\t%d (0x%04x)\n", bucket, uint16(bucket))
	fmt.Fprintf(w, "token:\t%d\n", partition.Token(bucket))
	return w.Flush()
}

func runSplits(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("splits", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	table := fs.String("table", "", "Show the partitions of one table (keyspace.table)")

	fs.Usage = func() {
		fmt.Println(`Usage: ybroute splits [options]

List the table splits stored for the configured cluster.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	e, cleanup, err := openEnv(*configPath, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return listSplits(ctx, e, *table, out)
}

func listSplits(ctx context.Context, e *env, table string, out io.Writer) error {
	_, catalog, result, err := e.loadSplits(ctx, nil)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if table != "" {
		split, ok := catalog.TableSplit(table)
		if !ok {
			return fmt.Errorf("no split stored for %s", table)
		}
		fmt.Fprintln(w, "START\tEND\tREPLICAS")
		record := topology.RecordFromSplit(split)
		for _, p := range record.Partitions {
			replicas := make([]string, len(p.Replicas))
			for i, r := range p.Replicas {
				replicas[i] = r.Address
			}
			fmt.Fprintf(w, "0x%04x\t0x%04x\t%s\n", p.StartKey, p.EndKey, strings.Join(replicas, ","))
		}
		return w.Flush()
	}

	fmt.Fprintln(w, "TABLE\tPARTITIONS")
	for _, name := range catalog.Tables() {
		split, _ := catalog.TableSplit(name)
		fmt.Fprintf(w, "%s\t%d\n", name, split.NumPartitions())
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if result.Invalid > 0 {
		fmt.Fprintf(out, "\n%d invalid record(s) skipped\n", result.Invalid)
	}
	return nil
}

func runPublish(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	file := fs.String("file", "", "Split record JSON file, or - for stdin")

	fs.Usage = func() {
		fmt.Println(`Usage: ybroute publish -file <record.json> [options]

Validate a table split record and store it for the configured cluster.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		fs.Usage()
		return fmt.Errorf("-file is required")
	}

	var (
		data []byte
		err  error
	)
	if *file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(*file)
	}
	if err != nil {
		return err
	}

	e, cleanup, err := openEnv(*configPath, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return publish(ctx, e, data, out)
}

func publish(ctx context.Context, e *env, data []byte, out io.Writer) error {
	record, err := topology.DecodeTableSplitRecord(data)
	if err != nil {
		return err
	}
	v, err := topology.PublishSplit(ctx, e.store, e.cfg.ClusterID, record)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "stored %s at version %d\n", keys.SplitKeyPath(e.cfg.ClusterID, record.Keyspace, record.Table), v)
	return nil
}

type planOptions struct {
	table       string
	consistency string
	localDC     string
	down        []string
	cols        []column
}

func runPlan(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	table := fs.String("table", "", "Table (keyspace.table)")
	consistency := fs.String("consistency", "", "Consistency level (default: from config)")
	localDC := fs.String("local-dc", "", "Override the local data center")
	var down stringsFlag
	fs.Var(&down, "down", "Treat the host at this address as down (repeatable)")
	var key keyColumns
	fs.Var(&key.types, "type", "CQL type of the next hash key column (repeatable)")
	fs.Var(&key.values, "value", "Value of the next hash key column (repeatable)")

	fs.Usage = func() {
		fmt.Println(`Usage: ybroute plan -table <ks.table> -type <type> -value <value> [options]

Print the hosts a statement on the given key would be sent to, in order.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	cols, err := key.parse()
	if err != nil {
		return err
	}

	e, cleanup, err := openEnv(*configPath, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return printPlan(ctx, e, planOptions{
		table:       *table,
		consistency: *consistency,
		localDC:     *localDC,
		down:        down,
		cols:        cols,
	}, out)
}

func printPlan(ctx context.Context, e *env, opts planOptions, out io.Writer) error {
	keyspace, table, err := keys.SplitTableName(opts.table)
	if err != nil {
		return err
	}
	cl := e.cfg.Consistency()
	if opts.consistency != "" {
		if cl, err = routing.ParseConsistency(opts.consistency); err != nil {
			return err
		}
	}
	localDC := e.cfg.Routing.LocalDC
	if opts.localDC != "" {
		localDC = opts.localDC
	}

	registry, catalog, _, err := e.loadSplits(ctx, nil)
	if err != nil {
		return err
	}
	for _, addr := range opts.down {
		if !registry.SetUp(addr, false) {
			return fmt.Errorf("unknown host %s", addr)
		}
	}

	fallback := routing.NewDCAwareRoundRobinPolicy(localDC, e.cfg.Routing.UsedHostsPerRemoteDC)
	policyOpts := []routing.Option{routing.WithLogger(e.logger)}
	if seed := e.cfg.Routing.ShuffleSeed; seed != 0 {
		policyOpts = append(policyOpts, routing.WithSeed(uint64(seed)))
	}
	policy := routing.NewPartitionAwarePolicy(fallback, policyOpts...)
	policy.Init(routing.NewClusterState(registry, catalog, e.cfg.Consistency()))

	stmt := prepared(keyspace, table, opts.cols).Bind(values(opts.cols)...)
	stmt.Consistency = cl

	if bucket, ok := routing.ComputeBucket(stmt, nil); ok {
		fmt.Fprintf(out, "bucket %d, consistency %s\n", bucket, cl)
	} else {
		fmt.Fprintf(out, "key is not routable, consistency %s\n", cl)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tHOST\tDC\tDISTANCE\tSTATE")
	i := 0
	for h := range policy.NewQueryPlan(keyspace, stmt).All() {
		i++
		state := "up"
		if !h.IsUp() {
			state = "down"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i, h.Address, h.DC, policy.Distance(h), state)
	}
	return w.Flush()
}
