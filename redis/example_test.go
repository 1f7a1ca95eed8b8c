package redis_test

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joomcode/redisnet/redis"
)

func ExampleAppendRequest() {
	req, err := redis.AppendRequest(nil, nil, redis.Req("GET", "one"))
	fmt.Printf("%q\n%v\n", req, err)
	req, err = redis.AppendRequest(req, nil, redis.Req("INCRBY", "cnt", 5))
	fmt.Printf("%q\n%v\n", req, err)
	req, err = redis.AppendRequest(req, nil, redis.Req("SENDFOO", struct{}{}))
	fmt.Printf("%q\n%v\n", req, err != nil)
	req, err = redis.AppendRequest(nil, nil, redis.Req("PEXPIRE", "one", time.Second))
	fmt.Printf("%q\n%v\n", req, err)

	// Output:
	// "*2\r\n$3\r\nGET\r\n$3\r\none\r\n"
	// <nil>
	// "*2\r\n$3\r\nGET\r\n$3\r\none\r\n*3\r\n$6\r\nINCRBY\r\n$3\r\ncnt\r\n$1\r\n5\r\n"
	// <nil>
	// "*2\r\n$3\r\nGET\r\n$3\r\none\r\n*3\r\n$6\r\nINCRBY\r\n$3\r\ncnt\r\n$1\r\n5\r\n"
	// true
	// "*3\r\n$7\r\nPEXPIRE\r\n$3\r\none\r\n$4\r\n1000\r\n"
	// <nil>
}

func ExampleAsError() {
	vals := []interface{}{
		nil,
		1,
		"hello",
		errors.New("high"),
		redis.ErrResult.New("goodbye"),
	}

	for _, v := range vals {
		fmt.Printf("%T => %v\n", v, redis.AsError(v) != nil)
	}

	// Output:
	// <nil> => false
	// int => false
	// string => false
	// *errors.errorString => true
	// *errorx.Error => true
}

func ExampleScan() {
	cmd := redis.ScanCommand(redis.ScanOpts{Match: "user:*", Count: 100}, "", redis.String)
	fmt.Println(cmd.Req)

	r := redis.NewReader(strings.NewReader("*2\r\n$2\r\n17\r\n*2\r\n$6\r\nuser:1\r\n$6\r\nuser:2\r\n"), nil)
	page, err := cmd.Parser.Parse(r)
	fmt.Println(page.Cursor, page.Items, page.Last(), err)

	// Output:
	// Req("SCAN", ["0" "MATCH" "user:*" "COUNT" "100"])
	// 17 [user:1 user:2] false <nil>
}
