// Package cmd implements redisnet command-line client.
//
// Subpackages:
//
//   - client: call, pipeline, subscribe, psubscribe and monitor commands
//   - bench: pool-bench command exercising pooled connectors
//   - util: configuration shared by commands (flags, environment, .env files)
//
// Every flag could be set with REDISNET_ prefixed environment variable,
// eg REDISNET_ADDR=127.0.0.1:6380 or REDISNET_RECEIVE_TIMEOUT=5s.
package cmd
