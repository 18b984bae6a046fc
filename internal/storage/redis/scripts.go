package redis

const (
	// incrementEntryScript atomically increments or creates a time entry and
	// registers it in the date, space and date-range indexes
	incrementEntryScript = `
local entry_key = KEYS[1]     -- {p}:entry:{date}/{spaceID}/{app}
local date_index = KEYS[2]    -- {p}:entries:date:{date}
local space_index = KEYS[3]   -- {p}:entries:space:{spaceID}
local dates_key = KEYS[4]     -- {p}:entries:dates

local date = ARGV[1]
local space_id = ARGV[2]
local app_name = ARGV[3]
local seconds = tonumber(ARGV[4])

if redis.call('EXISTS', entry_key) == 0 then
  redis.call('HSET', entry_key,
    'date', date,
    'space_id', space_id,
    'app_name', app_name,
    'duration', 0
  )
  redis.call('SADD', date_index, entry_key)
  redis.call('SADD', space_index, entry_key)
  redis.call('ZADD', dates_key, 0, date)
end

return redis.call('HINCRBY', entry_key, 'duration', seconds)
`

	// upsertSpaceScript writes a space hash and keeps the membership set current
	upsertSpaceScript = `
local space_key = KEYS[1]     -- {p}:space:{id}
local spaces_set = KEYS[2]    -- {p}:spaces

redis.call('DEL', space_key)
redis.call('HSET', space_key,
  'id', ARGV[1],
  'name', ARGV[2],
  'apps', ARGV[3],
  'is_active', ARGV[4],
  'color', ARGV[5],
  'created_at', ARGV[6]
)
redis.call('SADD', spaces_set, ARGV[1])

return 'OK'
`
)
