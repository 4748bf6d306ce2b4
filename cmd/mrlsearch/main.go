// Package main is the mrlsearch CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/hupe1980/mrlsearch/codec"
	appconfig "github.com/hupe1980/mrlsearch/config"
	"github.com/hupe1980/mrlsearch/internal/server"
	"github.com/hupe1980/mrlsearch/partition"
	"github.com/hupe1980/mrlsearch/vecmath"
)

var version = "dev"

const defaultConfigPath = "mrlsearch.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command := os.Args[1]; command {
	case "query":
		err = runQuery(ctx, os.Args[2:], os.Stdout)
	case "clusters":
		err = runClusters(ctx, os.Args[2:], os.Stdout)
	case "inspect":
		err = runInspect(ctx, os.Args[2:], os.Stdout)
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("mrlsearch version %s\n", version)
	case "help", "--help", "-h":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: mrlsearch <command> [flags]

Commands:
  query     search with an embedding vector
  clusters  list the clusters of the current index
  inspect   describe a single partition
  serve     run the HTTP API
  version   print the version

Run "mrlsearch <command> -h" for command flags.
`)
}

func loadConfig(path string) (*appconfig.Config, error) {
	if path == defaultConfigPath {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return appconfig.Default(), nil
		}
	}
	return appconfig.Load(path)
}

func setup(ctx context.Context, path string) (*components, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	return initializeComponents(ctx, cfg)
}

func runQuery(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	vector := fs.String("vector", "", "query embedding: comma separated floats, a JSON array, or @file")
	k := fs.Int("k", 10, "number of results")
	namespace := fs.String("namespace", "", "restrict to namespace")
	typ := fs.String("type", "", "restrict to type tag")
	metric := fs.String("metric", "", "override the index metric (cosine, euclidean, dot)")
	twoPhase := fs.Bool("two-phase", false, "rerank candidates with full embeddings")
	hotOnly := fs.Bool("hot-only", false, "search only the hot tier")
	coldOnly := fs.Bool("cold-only", false, "search only the cold tier")
	probe := fs.Int("probe", -1, "clusters to probe (0 = all, default from config)")
	timeout := fs.Duration("timeout", 0, "query timeout (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	embedding, err := parseVector(*vector)
	if err != nil {
		return err
	}

	c, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer c.Close()

	q := c.Engine.Query(embedding).K(*k).Namespace(*namespace).Type(*typ)
	if *metric != "" {
		m, err := vecmath.ParseMetric(*metric)
		if err != nil {
			return err
		}
		q.Metric(m)
	}
	if *twoPhase {
		q.TwoPhase()
	}
	if *hotOnly {
		q.HotOnly()
	}
	if *coldOnly {
		q.ColdOnly()
	}
	if *probe >= 0 {
		q.ProbeClusters(*probe)
	}
	if *timeout > 0 {
		q.Timeout(*timeout)
	}

	resp, err := q.Execute(ctx)
	if err != nil {
		return err
	}
	return writeJSON(out, resp)
}

func runClusters(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("clusters", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer c.Close()

	idx, err := c.Indexes.Current(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "version %d, dimension %d, metric %s, %d clusters\n", idx.Version, idx.Dimension, idx.Metric, len(idx.Clusters))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLUSTER\tPARTITIONS\tKEYS")
	for _, cl := range idx.Clusters {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", cl.ID, len(cl.PartitionKeys), strings.Join(cl.PartitionKeys, ","))
	}
	return tw.Flush()
}

func runInspect(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	key := fs.String("key", "", "partition key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *key == "" {
		return fmt.Errorf("missing -key")
	}

	c, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer c.Close()

	p, err := partition.FetchPartition(ctx, c.Store, *key)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("partition %q not found", *key)
	}
	return writeJSON(out, server.PartitionSummary{
		Key:        p.Key,
		Entries:    p.Len(),
		Dimension:  p.Dimension,
		Namespaces: p.Namespaces(),
		Types:      p.Types(),
	})
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	addr := fs.String("addr", "", "listen address (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	c, err := initializeComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	go c.Indexes.Watch(ctx, cfg.Index.RefreshInterval)

	srv := server.NewServer(c.Engine, c.Store, cfg.Server.Addr,
		server.WithLogger(c.Logger.Logger),
		server.WithGatherer(c.Registry),
		server.WithDefaultK(cfg.Search.DefaultK),
	)
	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	c.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// parseVector accepts "0.1,0.2", "[0.1, 0.2]" or "@path" to a file holding
// either form.
func parseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("missing -vector")
	}
	if strings.HasPrefix(s, "@") {
		data, err := os.ReadFile(s[1:])
		if err != nil {
			return nil, fmt.Errorf("read vector: %w", err)
		}
		return parseVector(string(data))
	}
	if strings.HasPrefix(s, "[") {
		var v []float32
		if err := codec.Default.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("parse vector: %w", err)
		}
		return v, nil
	}

	fields := strings.Split(s, ",")
	v := make([]float32, len(fields))
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector element %d: %w", i, err)
		}
		v[i] = float32(x)
	}
	return v, nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := codec.Default.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
