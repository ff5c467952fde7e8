package database

// Config holds database connection settings. Populated by the composition
// root from the application configuration.
type Config struct {
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConnections int
}
