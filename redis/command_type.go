package redis

import "strings"

var blockingCommands = map[string]struct{}{
	"BLPOP": {}, "BRPOP": {}, "BRPOPLPUSH": {}, "BLMOVE": {}, "BLMPOP": {},
	"BZPOPMIN": {}, "BZPOPMAX": {}, "BZMPOP": {},
	"XREAD": {}, "XREADGROUP": {},
	"WAIT": {}, "WAITAOF": {},
}

var dangerousCommands = map[string]struct{}{
	"SUBSCRIBE": {}, "PSUBSCRIBE": {}, "SSUBSCRIBE": {},
	"UNSUBSCRIBE": {}, "PUNSUBSCRIBE": {}, "SUNSUBSCRIBE": {},
	"MONITOR": {}, "SYNC": {}, "PSYNC": {},
}

// Blocking returns true if command is known to be blocking.
// Connection does not apply receive timeout to such commands.
func Blocking(cmd string) bool {
	_, ok := blockingCommands[upperVerb(cmd)]
	return ok
}

// Dangerous returns true if command switches connection into streaming mode.
// Such commands could not be pipelined with regular ones.
func Dangerous(cmd string) bool {
	_, ok := dangerousCommands[upperVerb(cmd)]
	return ok
}

func upperVerb(cmd string) string {
	if i := strings.IndexByte(cmd, ' '); i >= 0 {
		cmd = cmd[:i]
	}
	for i := 0; i < len(cmd); i++ {
		if c := cmd[i]; c >= 'a' && c <= 'z' {
			return strings.ToUpper(cmd)
		}
	}
	return cmd
}
