package cfg

import (
	"strconv"
)

// Octal is the datatype for params such as file-mode and dir-mode which
// accept a base-8 value.
type Octal int

func (o *Octal) UnmarshalText(text []byte) error {
	v, err := strconv.ParseInt(string(text), 8, 32)
	if err != nil {
		return err
	}
	*o = Octal(v)
	return nil
}

func (o Octal) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(o), 8)), nil
}

// ProviderConfig names one backend to mount under the synthetic root, in
// the order providers should be registered (and therefore the order their
// root directories appear under the mount point).
type ProviderConfig struct {
	Id   string `yaml:"id"`
	Type string `yaml:"type"`
	Root string `yaml:"root"`
}

type LogRotateLoggingConfig struct {
	MaxFileSizeMb   int  `yaml:"max-file-size-mb"`
	BackupFileCount int  `yaml:"backup-file-count"`
	Compress        bool `yaml:"compress"`
}

type LoggingConfig struct {
	Severity  string                 `yaml:"severity"`
	Format    string                 `yaml:"format"`
	FilePath  string                 `yaml:"file-path"`
	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`
}
