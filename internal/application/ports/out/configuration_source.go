package out

type ConfigurationSource interface {
	ConnectionString(name string) (string, error)
}
