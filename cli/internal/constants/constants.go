package constants

// Application identity
const (
	// AppName names the binary, the tracer service and the config file
	AppName = "apiflow"

	// ConfigFileName is looked up in the working directory when --config is not given
	ConfigFileName = "apiflow"

	// EnvPrefix prefixes every environment override, e.g. APIFLOW_BASE_URL
	EnvPrefix = "APIFLOW"
)

// Service defaults
const (
	// DefaultAddr is the listen address of the run service
	DefaultAddr = ":8080"
)
