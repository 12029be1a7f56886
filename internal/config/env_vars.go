package config

type EnvVars struct {
	AppName  string `env:"APP_NAME, default=CTF Client"`
	LogLevel string `env:"LOG_LEVEL, default=info"`
	Env      string `env:"ENV, default=DEV"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func (e EnvVars) GetEnv() string {
	return e.Env
}
