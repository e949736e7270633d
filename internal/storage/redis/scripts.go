package redis

import "github.com/redis/go-redis/v9"

var (
	createSession     = redis.NewScript(createSessionScript)
	updateSession     = redis.NewScript(updateSessionScript)
	deleteSession     = redis.NewScript(deleteSessionScript)
	deleteAllSessions = redis.NewScript(deleteAllSessionsScript)
	createUser        = redis.NewScript(createUserScript)
	deleteUser        = redis.NewScript(deleteUserScript)
)

const (
	// createSessionScript inserts a session hash and adds it to both start-time indexes
	createSessionScript = `
local session_key = KEYS[1]     -- {prefix}:session:{id}
local all_index = KEYS[2]       -- {prefix}:sessions
local user_index = KEYS[3]      -- {prefix}:sessions:user:{userID}

local id = ARGV[1]
local score = ARGV[11]

if redis.call('EXISTS', session_key) == 1 then
  return 'EXISTS'
end

redis.call('HSET', session_key,
  'id', id,
  'user_id', ARGV[2],
  'start_time', ARGV[3],
  'end_time', ARGV[4],
  'pauses', ARGV[5],
  'eye_state', ARGV[6],
  'notes', ARGV[7],
  'revision', ARGV[8],
  'created_at', ARGV[9],
  'updated_at', ARGV[10]
)

redis.call('ZADD', all_index, score, id)
redis.call('ZADD', user_index, score, id)

return 'OK'
`

	// updateSessionScript replaces the mutable fields of a session when the
	// expected revision matches (0 skips the check) and moves the per-user
	// index entry if the owner changed.
	updateSessionScript = `
local session_key = KEYS[1]     -- {prefix}:session:{id}
local all_index = KEYS[2]       -- {prefix}:sessions

local prefix = ARGV[1]
local id = ARGV[2]
local expected = tonumber(ARGV[3])
local user_id = ARGV[4]
local score = ARGV[11]

if redis.call('EXISTS', session_key) == 0 then
  return {'NOT_FOUND'}
end

local current = tonumber(redis.call('HGET', session_key, 'revision')) or 0
if expected ~= 0 and expected ~= current then
  return {'CONFLICT'}
end

local old_user = redis.call('HGET', session_key, 'user_id')
if old_user and old_user ~= user_id then
  redis.call('ZREM', prefix .. ':sessions:user:' .. old_user, id)
end

local revision = current + 1

redis.call('HSET', session_key,
  'user_id', user_id,
  'start_time', ARGV[5],
  'end_time', ARGV[6],
  'pauses', ARGV[7],
  'eye_state', ARGV[8],
  'notes', ARGV[9],
  'revision', tostring(revision),
  'updated_at', ARGV[10]
)

redis.call('ZADD', all_index, score, id)
redis.call('ZADD', prefix .. ':sessions:user:' .. user_id, score, id)

return {'OK', tostring(revision)}
`

	// deleteSessionScript removes a session and its index entries
	deleteSessionScript = `
local session_key = KEYS[1]     -- {prefix}:session:{id}
local all_index = KEYS[2]       -- {prefix}:sessions

local prefix = ARGV[1]
local id = ARGV[2]

local user_id = redis.call('HGET', session_key, 'user_id')
if not user_id then
  return 0
end

redis.call('DEL', session_key)
redis.call('ZREM', all_index, id)
redis.call('ZREM', prefix .. ':sessions:user:' .. user_id, id)

return 1
`

	// deleteAllSessionsScript removes every session and index, returning the count
	deleteAllSessionsScript = `
local all_index = KEYS[1]       -- {prefix}:sessions

local prefix = ARGV[1]

local ids = redis.call('ZRANGE', all_index, 0, -1)
for _, id in ipairs(ids) do
  local session_key = prefix .. ':session:' .. id
  local user_id = redis.call('HGET', session_key, 'user_id')
  if user_id then
    redis.call('DEL', prefix .. ':sessions:user:' .. user_id)
  end
  redis.call('DEL', session_key)
end
redis.call('DEL', all_index)

return #ids
`

	// createUserScript inserts a user hash unless one already exists
	createUserScript = `
local user_key = KEYS[1]        -- {prefix}:user:{id}
local users_set = KEYS[2]       -- {prefix}:users

if redis.call('EXISTS', user_key) == 1 then
  return 'EXISTS'
end

redis.call('HSET', user_key,
  'id', ARGV[1],
  'email', ARGV[2],
  'age', ARGV[3],
  'created_at', ARGV[4]
)
redis.call('SADD', users_set, ARGV[1])

return 'OK'
`

	// deleteUserScript removes a user hash and its set membership
	deleteUserScript = `
local user_key = KEYS[1]        -- {prefix}:user:{id}
local users_set = KEYS[2]       -- {prefix}:users

local removed = redis.call('DEL', user_key)
redis.call('SREM', users_set, ARGV[1])

return removed
`
)
