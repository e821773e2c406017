package driven

// ConfigStore holds settings under dotted keys such as "chunking.size" or
// "llm.fallback.model". Typed getters return the zero value when the key is
// missing or holds another type. Numbers decoded from TOML or JSON may be
// int64 or float64, so GetInt and GetFloat accept either.
type ConfigStore interface {
	// Get returns the raw value and whether the key exists.
	Get(key string) (any, bool)

	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool
	GetStringSlice(key string) []string

	// Set changes the in-memory value. Nothing is persisted until Save.
	Set(key string, value any) error
	Save() error

	// Load rereads storage. Stores without a file keep their values.
	Load() error

	// Path is the backing file, or ":memory:" for stores without one.
	Path() string
}
