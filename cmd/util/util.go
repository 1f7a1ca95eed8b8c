// Package util holds configuration shared by redisnet commands.
package util

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"github.com/joho/godotenv"
	"github.com/joomcode/errorx"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joomcode/redisnet/redis"
	"github.com/joomcode/redisnet/redisconn"
)

// SetupConnFlags adds connection flags to cmd, they are inherited by subcommands.
func SetupConnFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("addr", "127.0.0.1:6379", "server address: host:port, tls://host:port or unix:///path")
	f.String("username", "", "ACL user name")
	f.String("password", "", "password for AUTH")
	f.Int("db", 0, "database number")
	f.String("client-name", "redisnet", "name set with CLIENT SETNAME")
	f.String("encoding", "utf-8", "text encoding of arguments and replies (utf-8, latin1, windows-1251, ...)")
	f.Duration("receive-timeout", 0, "socket read timeout (0 for default 1s, negative to disable)")
	f.Duration("send-timeout", 0, "socket write timeout (0 for default 1s, negative to disable)")
	f.Duration("dial-timeout", 0, "dial timeout (0 for default 2s)")
	f.Int("reconnect-attempts", 0, "attempts to reestablish broken connection (0 for default 3, negative to disable)")
	f.Duration("reconnect-wait", 0, "pause between reconnection attempts (0 for default 200ms)")
	f.Int("async-concurrency", 0, "asynchronous sends in flight (0 for default 64)")
	f.Int("async-buffer-size", 0, "buffer size of single asynchronous send (0 for default 16KB)")
	f.Bool("verbose", false, "log connection events")
	f.Bool("metrics", false, "print metrics in Prometheus format on exit")
}

// InitConfig loads .env files and sets up environment lookup.
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("redisnet")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// BindCommandFlags binds a command's flags to viper.
func BindCommandFlags(cmd *cobra.Command, _ []string) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetAddr returns configured server address.
func GetAddr() string {
	return viper.GetString("addr")
}

// GetConnOpts reads connector options from viper.
func GetConnOpts() (redisconn.Opts, error) {
	enc, err := redis.EncodingByName(viper.GetString("encoding"))
	if err != nil {
		return redisconn.Opts{}, err
	}
	opts := redisconn.Opts{
		ReceiveTimeout:    viper.GetDuration("receive-timeout"),
		SendTimeout:       viper.GetDuration("send-timeout"),
		DialTimeout:       viper.GetDuration("dial-timeout"),
		ReconnectAttempts: viper.GetInt("reconnect-attempts"),
		ReconnectWait:     viper.GetDuration("reconnect-wait"),
		AsyncConcurrency:  viper.GetInt("async-concurrency"),
		AsyncBufferSize:   viper.GetInt("async-buffer-size"),
		Encoding:          enc,
		DB:                viper.GetInt("db"),
		Username:          viper.GetString("username"),
		Password:          viper.GetString("password"),
		ClientName:        viper.GetString("client-name"),
		Logger:            redisconn.NoopLogger{},
	}
	if viper.GetBool("verbose") {
		opts.Logger = redisconn.DefaultLogger{}
	}
	return opts, nil
}

// Context returns context cancelled on interrupt.
func Context() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// Connect connects to configured server.
func Connect(ctx context.Context) (*redisconn.Connector, error) {
	opts, err := GetConnOpts()
	if err != nil {
		return nil, err
	}
	return redisconn.Connect(ctx, GetAddr(), opts)
}

// ToArgs converts command line words to request arguments.
func ToArgs(words []string) []interface{} {
	args := make([]interface{}, len(words))
	for i, w := range words {
		args[i] = w
	}
	return args
}

// DumpMetrics prints metrics if --metrics flag is set.
func DumpMetrics(*cobra.Command, []string) {
	if viper.GetBool("metrics") {
		metrics.WritePrometheus(os.Stdout, false)
	}
}

// Format writes reply the way redis-cli does.
func Format(w io.Writer, res interface{}, err error) {
	if err != nil {
		fmt.Fprintf(w, "(error) %s\n", errorMessage(err))
		return
	}
	format(w, res, "")
}

func format(w io.Writer, res interface{}, indent string) {
	switch v := res.(type) {
	case nil:
		fmt.Fprintln(w, "(nil)")
	case string:
		fmt.Fprintln(w, v)
	case []byte:
		fmt.Fprintln(w, strconv.Quote(string(v)))
	case int64:
		fmt.Fprintf(w, "(integer) %d\n", v)
	case *errorx.Error:
		fmt.Fprintf(w, "(error) %s\n", v.Message())
	case []interface{}:
		if len(v) == 0 {
			fmt.Fprintln(w, "(empty array)")
			return
		}
		width := len(strconv.Itoa(len(v)))
		for i, item := range v {
			prefix := fmt.Sprintf("%*d) ", width, i+1)
			if i > 0 {
				fmt.Fprint(w, indent)
			}
			fmt.Fprint(w, prefix)
			format(w, item, indent+strings.Repeat(" ", len(prefix)))
		}
	default:
		fmt.Fprintf(w, "%v\n", v)
	}
}

func errorMessage(err error) string {
	if errorx.IsOfType(err, redis.ErrResult) {
		return errorx.Cast(err).Message()
	}
	return err.Error()
}
