package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joomcode/redisnet/cmd/util"
	"github.com/joomcode/redisnet/redis"
	"github.com/joomcode/redisnet/redisconn"
	"github.com/joomcode/redisnet/redislisten"
)

var (
	subscribeCmd = &cobra.Command{
		Use:   "subscribe [channel...]",
		Short: "Subscribe to channels and print published messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubscription(cmd, func(sub *redislisten.Subscription) error {
				return sub.Subscribe(args...)
			})
		},
	}
	psubscribeCmd = &cobra.Command{
		Use:   "psubscribe [pattern...]",
		Short: "Subscribe to channel patterns and print published messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubscription(cmd, func(sub *redislisten.Subscription) error {
				return sub.PSubscribe(args...)
			})
		},
	}
	monitorCmd = &cobra.Command{
		Use:   "monitor",
		Short: "Print every command processed by server",
		Args:  cobra.NoArgs,
		RunE:  runMonitor,
	}
)

func init() {
	monitorCmd.Flags().Bool("raw", false, "print lines as received, without parsing")
}

func runSubscription(cmd *cobra.Command, subscribe func(*redislisten.Subscription) error) error {
	ctx, cancel := util.Context()
	defer cancel()
	conn, err := util.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	out := cmd.OutOrStdout()
	sub := redislisten.NewSubscription(conn)
	sub.OnChanged(func(ev redis.SubscriptionEvent) {
		fmt.Fprintf(out, "%s %s (%d active)\n", ev.Kind, ev.Channel, ev.Count)
	})
	sub.OnMessage(func(ev redis.SubscriptionEvent) {
		if ev.Pattern != "" {
			fmt.Fprintf(out, "%s %s %s: %s\n", ev.Kind, ev.Pattern, ev.Channel, strconv.Quote(string(ev.Body)))
			return
		}
		fmt.Fprintf(out, "%s %s: %s\n", ev.Kind, ev.Channel, strconv.Quote(string(ev.Body)))
	})
	if err := subscribe(sub); err != nil {
		return err
	}
	return listen(ctx, conn, sub.Listen)
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	ctx, cancel := util.Context()
	defer cancel()
	conn, err := util.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	raw, _ := cmd.Flags().GetBool("raw")
	out := cmd.OutOrStdout()
	m := redislisten.NewMonitor(conn)
	m.OnEntry(func(entry interface{}) {
		line, ok := entry.(string)
		if !ok || raw {
			fmt.Fprintln(out, entry)
			return
		}
		e, err := redislisten.ParseEntry(line)
		if err != nil {
			fmt.Fprintln(out, line)
			return
		}
		fmt.Fprintf(out, "%s db%d %s %q\n", e.Time.Format("15:04:05.000000"), e.DB, e.Client, e.Args)
	})
	return listen(ctx, conn, func() error {
		_, err := m.Start()
		return err
	})
}

// listen runs loop again after connector recovers from broken transport.
func listen(ctx context.Context, conn *redisconn.Connector, loop func() error) error {
	for {
		err := loop()
		if err == nil || ctx.Err() != nil {
			return nil
		}
		if werr := conn.WaitConnected(ctx); werr != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
