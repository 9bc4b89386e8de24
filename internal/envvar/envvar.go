package envvar

const (
	// StylusEnv is the environment variable used to determine the environment
	StylusEnv = "STYLUS_ENV"

	// StylusModelsPath overrides the directory models are downloaded into
	StylusModelsPath = "STYLUS_MODELS_PATH"

	// StylusServerHTTPPort is the environment variable used to determine the HTTP port
	StylusServerHTTPPort = "STYLUS_SERVER_HTTP_PORT"

	// StylusServerGRPCPort is the environment variable used to determine the gRPC port
	StylusServerGRPCPort = "STYLUS_SERVER_GRPC_PORT"

	// StylusLogFile is the path of the rotating log file
	StylusLogFile = "STYLUS_LOG_FILE"
)
