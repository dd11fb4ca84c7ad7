package state

import "github.com/kailas-cloud/flagdex/internal/db"

// Every entity script takes
//
//	KEYS: entity hash, global index, scoped index
//	ARGV: parent field, flag field, score field, deleted field, member id, expected parent, ...
//
// and replies {"0"} when the hash is gone or now belongs to another parent.
// Field reads and index writes happen in one script, so concurrent writers
// never leave the flag and the indices disagreeing.

const luaHelpers = `
local function truthy(v) return v == '1' or v == 'true' end
local function b(v) if v then return '1' end return '0' end
`

const luaEntity = luaHelpers + `
local parent = redis.call('HGET', KEYS[1], ARGV[1])
if not parent or parent == '' or parent ~= ARGV[6] then return {'0'} end
local flagged = truthy(redis.call('HGET', KEYS[1], ARGV[2]))
local deleted = truthy(redis.call('HGET', KEYS[1], ARGV[4]))
local function score(fallback)
  local raw = redis.call('HGET', KEYS[1], ARGV[3])
  local n = tonumber(raw or '')
  if n and n > 0 then return raw end
  return fallback
end
`

// ARGV[7] desired flag, ARGV[8] score. Replies {found, changed, flagged}.
var setFlagScript = db.NewScript(luaEntity + `
local want = ARGV[7] == '1'
if flagged == want then return {'1', '0', b(flagged)} end
if want then
  redis.call('HSET', KEYS[1], ARGV[2], '1', ARGV[3], ARGV[8])
  if not deleted then
    redis.call('ZADD', KEYS[2], ARGV[8], ARGV[5])
    redis.call('ZADD', KEYS[3], ARGV[8], ARGV[5])
  end
else
  redis.call('HSET', KEYS[1], ARGV[2], '0')
  redis.call('ZREM', KEYS[2], ARGV[5])
  redis.call('ZREM', KEYS[3], ARGV[5])
end
return {'1', '1', b(want)}
`)

// ARGV[7] desired deleted marker, ARGV[8] fallback score. Replies {found, changed, flagged}.
var setDeletedScript = db.NewScript(luaEntity + `
local want = ARGV[7] == '1'
redis.call('HSET', KEYS[1], ARGV[4], ARGV[7])
if want then
  redis.call('ZREM', KEYS[2], ARGV[5])
  redis.call('ZREM', KEYS[3], ARGV[5])
elseif flagged then
  local s = score(ARGV[8])
  redis.call('ZADD', KEYS[2], s, ARGV[5])
  redis.call('ZADD', KEYS[3], s, ARGV[5])
end
return {'1', b(deleted ~= want), b(flagged)}
`)

// Replies {found, changed, flagged}.
var purgeScript = db.NewScript(luaEntity + `
redis.call('ZREM', KEYS[2], ARGV[5])
redis.call('ZREM', KEYS[3], ARGV[5])
redis.call('DEL', KEYS[1])
return {'1', '1', b(flagged)}
`)

// ARGV[7] fallback score. Replies {found, indexed, inGlobal, inScoped} as seen before the fix.
var reconcileScript = db.NewScript(luaEntity + `
local want = flagged and not deleted
local inGlobal = redis.call('ZSCORE', KEYS[2], ARGV[5]) ~= false
local inScoped = redis.call('ZSCORE', KEYS[3], ARGV[5]) ~= false
if want then
  local s = score(ARGV[7])
  if not inGlobal then redis.call('ZADD', KEYS[2], s, ARGV[5]) end
  if not inScoped then redis.call('ZADD', KEYS[3], s, ARGV[5]) end
else
  if inGlobal then redis.call('ZREM', KEYS[2], ARGV[5]) end
  if inScoped then redis.call('ZREM', KEYS[3], ARGV[5]) end
end
return {'1', b(want), b(inGlobal), b(inScoped)}
`)

// KEYS: entity hash, global index. ARGV: parent field, member id.
// Replies {vanished, removed}; a hash that came back is left alone.
var dropVanishedScript = db.NewScript(`
local parent = redis.call('HGET', KEYS[1], ARGV[1])
if parent and parent ~= '' then return {'0', '0'} end
return {'1', tostring(redis.call('ZREM', KEYS[2], ARGV[2]))}
`)

// KEYS: index, then one entity hash per member.
// ARGV: parent field, flag field, deleted field, required parent ("" for the global index), members.
// Removes only members whose hash still says they do not belong; replies with the removed ids.
var removeStaleScript = db.NewScript(luaHelpers + `
local removed = {}
for i = 5, #ARGV do
  local h = KEYS[i - 3]
  local parent = redis.call('HGET', h, ARGV[1])
  local keep = parent and parent ~= ''
    and truthy(redis.call('HGET', h, ARGV[2]))
    and not truthy(redis.call('HGET', h, ARGV[3]))
    and (ARGV[4] == '' or parent == ARGV[4])
  if not keep and redis.call('ZREM', KEYS[1], ARGV[i]) == 1 then
    removed[#removed + 1] = ARGV[i]
  end
end
return removed
`)
