package server

// TaggerServerConfig holds defaults for the external tag-inference
// backend. Requests may override thresholds per run.
type TaggerServerConfig struct {
	ModelName          string  `mapstructure:"model_name"          yaml:"model_name"`
	ModelPath          string  `mapstructure:"model_path"          yaml:"model_path"`
	TagsPath           string  `mapstructure:"tags_path"           yaml:"tags_path"`
	Threshold          float64 `mapstructure:"threshold"           yaml:"threshold"`
	CharacterThreshold float64 `mapstructure:"character_threshold" yaml:"character_threshold"`
	UseGPU             bool    `mapstructure:"use_gpu"             yaml:"use_gpu"`
}
