package envvar

const (
	// ScribepodEnv is the environment variable used to determine the environment
	ScribepodEnv = "SCRIBEPOD_ENV"

	// ScribepodModelsPath overrides the directory models are downloaded into
	ScribepodModelsPath = "SCRIBEPOD_MODELS_PATH"

	// ServerHost is the environment variable used to determine the HTTP host
	ServerHost = "WHISPER_SERVER_HOST"

	// ServerPort is the environment variable used to determine the HTTP port
	ServerPort = "WHISPER_SERVER_PORT"

	// CORSAllowedOrigins is a comma separated list of allowed CORS origins
	CORSAllowedOrigins = "CORS_ALLOWED_ORIGINS"

	// RateLimitMaxRequests is the number of requests allowed per window and client
	RateLimitMaxRequests = "RATE_LIMIT_MAX_REQUESTS"

	// RateLimitWindowMS is the rate limit window in milliseconds
	RateLimitWindowMS = "RATE_LIMIT_WINDOW_MS"
)
