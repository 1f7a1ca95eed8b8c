// Package bench implements pool-bench command.
package bench

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joomcode/errorx"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joomcode/redisnet/cmd/util"
	"github.com/joomcode/redisnet/redis"
	"github.com/joomcode/redisnet/redisconn"
	"github.com/joomcode/redisnet/redispool"
)

// PoolBenchCmd runs workers taking connectors from socket pool.
var PoolBenchCmd = &cobra.Command{
	Use:   "pool-bench",
	Short: "Load server with pipelined requests from pooled connectors",
	Long: `Starts --workers goroutines. Each one repeatedly takes connector from socket pool,
sends --batch pipelined SET requests, waits for replies and returns connector to the pool.
Acquisitions refused because pool is exhausted are counted, not retried.`,
	Args:    cobra.NoArgs,
	PreRunE: util.BindCommandFlags,
	RunE:    run,
}

func init() {
	f := PoolBenchCmd.Flags()
	f.Int("workers", 16, "number of concurrent workers")
	f.Int("max-sockets", 8, "socket pool size")
	f.Duration("duration", 5*time.Second, "benchmark duration")
	f.Int("batch", 100, "requests pipelined on one leased connector")
	f.Int("keys", 1000, "number of distinct keys")
	f.Int("value-size", 64, "value size in bytes")
	f.String("key-prefix", "__redisnet_bench:", "prefix of keys")
}

type result struct {
	requests  atomic.Int64
	errors    atomic.Int64
	exhausted atomic.Int64
	leases    atomic.Int64
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, cancel := util.Context()
	defer cancel()

	copts, err := util.GetConnOpts()
	if err != nil {
		return err
	}
	pool, err := redispool.New(util.GetAddr(), redispool.Opts{
		MaxSockets: viper.GetInt("max-sockets"),
		ConnOpts:   copts,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	var (
		workers  = viper.GetInt("workers")
		duration = viper.GetDuration("duration")
		batch    = viper.GetInt("batch")
		keys     = viper.GetInt("keys")
		prefix   = viper.GetString("key-prefix")
		value    = make([]byte, viper.GetInt("value-size"))
	)
	if keys <= 0 {
		keys = 1
	}
	for i := range value {
		value[i] = 'x'
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "pool-bench: %s, %d workers, %d sockets, batch %d, for %s\n",
		util.GetAddr(), workers, viper.GetInt("max-sockets"), batch, duration)

	var res result
	deadline := time.Now().Add(duration)
	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			n := w
			for time.Now().Before(deadline) && ctx.Err() == nil {
				conn, err := pool.Client(ctx)
				if err != nil {
					if errorx.IsOfType(err, redispool.ErrPoolExhausted) {
						res.exhausted.Add(1)
						time.Sleep(time.Millisecond)
						continue
					}
					res.errors.Add(1)
					time.Sleep(10 * time.Millisecond)
					continue
				}
				res.leases.Add(1)
				futures := make([]*redisconn.Future, batch)
				for i := range futures {
					key := prefix + strconv.Itoa(n%keys)
					futures[i] = conn.Send(redis.Req("SET", key, value))
					n++
				}
				for _, f := range futures {
					if _, err := f.Wait(); err != nil {
						res.errors.Add(1)
					} else {
						res.requests.Add(1)
					}
				}
				conn.Close()
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	st := pool.Stat()
	fmt.Fprintf(out, "requests:  %d (%.0f/s)\n", res.requests.Load(), float64(res.requests.Load())/elapsed.Seconds())
	fmt.Fprintf(out, "errors:    %d\n", res.errors.Load())
	fmt.Fprintf(out, "leases:    %d\n", res.leases.Load())
	fmt.Fprintf(out, "exhausted: %d\n", res.exhausted.Load())
	fmt.Fprintf(out, "sockets:   total %d, idle %d, stale discarded %d, breaker %s\n",
		st.Total, st.Idle, st.Stale, st.Breaker)
	return nil
}
