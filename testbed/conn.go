package testbed

import (
	"net"
	"time"

	"github.com/joomcode/redisnet/redis"
)

// Do sends single command through fresh connection and reads its response.
func Do(addr string, cmd string, args ...interface{}) (interface{}, error) {
	conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
	if err != nil {
		return nil, redis.WrapIO(err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(1 * time.Second))
	req, err := redis.AppendRequest(nil, nil, redis.Req(cmd, args...))
	if err != nil {
		return nil, err
	}
	if _, err = conn.Write(req); err != nil {
		return nil, redis.WrapIO(err)
	}
	return redis.NewReader(conn, nil).Read(redis.BulkAsString)
}
