package util

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/joomcode/redisnet/redis"
	"github.com/joomcode/redisnet/redisconn"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		name string
		res  interface{}
		err  error
		out  string
	}{
		{"nil", nil, nil, "(nil)\n"},
		{"status", "OK", nil, "OK\n"},
		{"bulk", []byte("a \"b\""), nil, "\"a \\\"b\\\"\"\n"},
		{"integer", int64(42), nil, "(integer) 42\n"},
		{"empty array", []interface{}{}, nil, "(empty array)\n"},
		{"array", []interface{}{[]byte("a"), int64(1), nil}, nil, "1) \"a\"\n2) (integer) 1\n3) (nil)\n"},
		{"nested", []interface{}{[]interface{}{[]byte("x"), []byte("y")}, []byte("z")}, nil,
			"1) 1) \"x\"\n   2) \"y\"\n2) \"z\"\n"},
		{"server error", nil, redis.NewResultError("WRONGTYPE bad"), "(error) WRONGTYPE bad\n"},
		{"error in array", []interface{}{redis.NewResultError("ERR x")}, nil, "1) (error) ERR x\n"},
		{"other error", nil, errors.New("boom"), "(error) boom\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var buf bytes.Buffer
			Format(&buf, c.res, c.err)
			assert.Equal(t, c.out, buf.String())
		})
	}
}

func TestGetConnOpts(t *testing.T) {
	defer viper.Reset()
	cmd := &cobra.Command{Use: "test"}
	SetupConnFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--addr", "tls://example.com:6380",
		"--db", "3",
		"--encoding", "latin1",
		"--receive-timeout", "300ms",
		"--reconnect-attempts", "-1",
	}))
	require.NoError(t, viper.BindPFlags(cmd.PersistentFlags()))

	assert.Equal(t, "tls://example.com:6380", GetAddr())
	opts, err := GetConnOpts()
	require.NoError(t, err)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 300*time.Millisecond, opts.ReceiveTimeout)
	assert.Equal(t, -1, opts.ReconnectAttempts)
	assert.Equal(t, "redisnet", opts.ClientName)
	assert.Equal(t, charmap.Windows1252, opts.Encoding)
	assert.Equal(t, redisconn.NoopLogger{}, opts.Logger)

	viper.Set("encoding", "no-such-encoding")
	_, err = GetConnOpts()
	assert.Error(t, err)
}

func TestToArgs(t *testing.T) {
	assert.Equal(t, []interface{}{"a", "b"}, ToArgs([]string{"a", "b"}))
	assert.Empty(t, ToArgs(nil))
}
