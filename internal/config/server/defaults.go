package server

import "github.com/spf13/viper"

func GetServerDefault() BaseServerConfig {
	return BaseServerConfig{
		ShutdownTimeout: "10s",

		Log: LogServerConfig{
			Level:      "INFO",
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Rotation: LogServerRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},

		Store: StoreServerConfig{
			Type: "sqlite",
			SQLite: StoreSQLiteConfig{
				Path: "sdsort.db",
			},
		},

		HTTP: HTTPServerConfig{
			Address: "127.0.0.1:8420",
		},

		Tagger: TaggerServerConfig{
			ModelName:          "",
			ModelPath:          "",
			TagsPath:           "",
			Threshold:          0.35,
			CharacterThreshold: 0.85,
			UseGPU:             false,
		},
	}
}

func setDefaults() {
	defaults := GetServerDefault()

	viper.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)

	viper.SetDefault("store.type", defaults.Store.Type)
	viper.SetDefault("store.sqlite.path", defaults.Store.SQLite.Path)

	viper.SetDefault("http.address", defaults.HTTP.Address)

	viper.SetDefault("tagger.model_name", defaults.Tagger.ModelName)
	viper.SetDefault("tagger.model_path", defaults.Tagger.ModelPath)
	viper.SetDefault("tagger.tags_path", defaults.Tagger.TagsPath)
	viper.SetDefault("tagger.threshold", defaults.Tagger.Threshold)
	viper.SetDefault("tagger.character_threshold", defaults.Tagger.CharacterThreshold)
	viper.SetDefault("tagger.use_gpu", defaults.Tagger.UseGPU)
}
