package database

import "github.com/redis/go-redis/v9"

// SessionField tags Redis hashes that belong to one quiz session.
const SessionField = "session_id"

// DeleteIfSession deletes KEYS[1] only while its session_id field equals
// ARGV[1], so a late cleanup never wipes a newer session's state.
var DeleteIfSession = redis.NewScript(`
if redis.call("HGET", KEYS[1], "session_id") == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
