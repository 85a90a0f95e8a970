package bootstrap

// Config is the interface the application configuration must satisfy.
// The service's aggregate config type satisfies it directly.
type Config interface {
	ApplyDefaults()
	Validate() error
}
