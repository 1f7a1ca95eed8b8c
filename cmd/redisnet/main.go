package main

import "github.com/joomcode/redisnet/cmd"

func main() {
	cmd.Execute()
}
