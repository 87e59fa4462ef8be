package logging

const (
	// KeyAppName is the logging key for the application name.
	KeyAppName = "app"

	// KeyError is the logging key for errors.
	KeyError = "err"

	// KeyDal is the logging key for the data access layer in use.
	KeyDal = "dal"

	// KeyChannel is the logging key for a discord channel ID.
	KeyChannel = "channel_id"

	// KeyGuild is the logging key for a discord guild ID.
	KeyGuild = "guild_id"

	// KeyUser is the logging key for a discord user ID.
	KeyUser = "user_id"

	// EnvDebug is the environment variable that enables debug logging.
	EnvDebug = `DEBUG_LOGGING`
)
