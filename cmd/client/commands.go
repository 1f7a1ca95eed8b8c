// Package client implements commands talking to single redis server.
package client

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joomcode/redisnet/cmd/util"
	"github.com/joomcode/redisnet/redis"
	"github.com/joomcode/redisnet/redisconn"
)

var (
	callCmd = &cobra.Command{
		Use:   "call [command] [args...]",
		Short: "Send single command and print reply",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCall,
	}
	pipelineCmd = &cobra.Command{
		Use:   "pipeline",
		Short: "Send commands read line by line, all at once, and print replies in order",
		Long: `Reads commands from --file or standard input, one per line, words separated by spaces.
All commands are sent without waiting for replies, then replies are printed in order.`,
		Args: cobra.NoArgs,
		RunE: runPipeline,
	}
)

func init() {
	pipelineCmd.Flags().String("file", "", "file with commands (default standard input)")
}

// Commands returns client commands.
func Commands() []*cobra.Command {
	return []*cobra.Command{callCmd, pipelineCmd, subscribeCmd, psubscribeCmd, monitorCmd}
}

func runCall(cmd *cobra.Command, args []string) error {
	ctx, cancel := util.Context()
	defer cancel()
	conn, err := util.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	res, err := conn.Call(redis.Req(args[0], util.ToArgs(args[1:])...))
	util.Format(cmd.OutOrStdout(), res, err)
	return nil
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	in := io.Reader(os.Stdin)
	if name, _ := cmd.Flags().GetString("file"); name != "" {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	reqs, err := readRequests(in)
	if err != nil {
		return err
	}

	ctx, cancel := util.Context()
	defer cancel()
	conn, err := util.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	futures := make([]*redisconn.Future, len(reqs))
	for i, req := range reqs {
		futures[i] = conn.Send(req)
	}
	out := cmd.OutOrStdout()
	for i, f := range futures {
		res, err := f.Wait()
		fmt.Fprintf(out, "%s> ", reqs[i].Cmd)
		util.Format(out, res, err)
	}
	return nil
}

func readRequests(in io.Reader) ([]redis.Request, error) {
	var reqs []redis.Request
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		words := strings.Fields(sc.Text())
		if len(words) == 0 || strings.HasPrefix(words[0], "#") {
			continue
		}
		reqs = append(reqs, redis.Req(words[0], util.ToArgs(words[1:])...))
	}
	return reqs, sc.Err()
}
