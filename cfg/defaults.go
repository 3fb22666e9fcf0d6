package cfg

// GetDefaultLoggingConfig returns the default logging configuration: info
// severity, text format, and compressed rotation at 100 MB with 5 backups.
func GetDefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: "info",
		Format:   "text",
		LogRotate: LogRotateLoggingConfig{
			BackupFileCount: 5,
			Compress:        true,
			MaxFileSizeMb:   100,
		},
	}
}
