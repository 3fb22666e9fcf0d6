// Package cfg is the struct-of-structs configuration the mount command
// binds to pflag/viper, following the teacher's split between the flag
// definitions bound here and the defaults supplied in defaults.go.
package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Debug      DebugConfig      `yaml:"debug"`
	FileSystem FileSystemConfig `yaml:"file-system"`
	Logging    LoggingConfig    `yaml:"logging"`

	// Providers lists additional backends to mount, beyond the always-on
	// native-filesystem provider. Only settable via a config file (there
	// is no flag-per-provider mapping), since it is a list of structs;
	// viper.Unmarshal populates it straight from yaml.
	Providers []ProviderConfig `yaml:"providers"`
}

type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`
}

type FileSystemConfig struct {
	FileMode    Octal  `yaml:"file-mode"`
	DirMode     Octal  `yaml:"dir-mode"`
	Uid         int    `yaml:"uid"`
	Gid         int    `yaml:"gid"`
	FsName      string `yaml:"fs-name"`
	AutoUnmount bool   `yaml:"auto-unmount"`
}

// BindFlags registers the pflag flags and binds each to its viper key. The
// mount command's RunE defers to whatever error this (or config-file
// parsing) produced, following the teacher's bindErr/configFileErr/
// unmarshalErr pattern rather than returning early from init().
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.BoolP("debug_invariants", "", false, "Abort the process when an internal tree invariant is violated.")
	if err = viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug_invariants")); err != nil {
		return err
	}

	flagSet.IntP("file-mode", "", 0644, "Permission bits for files, in octal.")
	if err = viper.BindPFlag("file-system.file-mode", flagSet.Lookup("file-mode")); err != nil {
		return err
	}

	flagSet.IntP("dir-mode", "", 0755, "Permission bits for directories, in octal.")
	if err = viper.BindPFlag("file-system.dir-mode", flagSet.Lookup("dir-mode")); err != nil {
		return err
	}

	flagSet.IntP("uid", "", -1, "UID owner of all inodes; -1 uses the invoking user.")
	if err = viper.BindPFlag("file-system.uid", flagSet.Lookup("uid")); err != nil {
		return err
	}

	flagSet.IntP("gid", "", -1, "GID owner of all inodes; -1 uses the invoking user's primary group.")
	if err = viper.BindPFlag("file-system.gid", flagSet.Lookup("gid")); err != nil {
		return err
	}

	flagSet.StringP("fs-name", "", "meshfs", "Filesystem name reported to the kernel.")
	if err = viper.BindPFlag("file-system.fs-name", flagSet.Lookup("fs-name")); err != nil {
		return err
	}

	flagSet.BoolP("auto-unmount", "", true, "Ask the kernel to unmount automatically when the mount process exits.")
	if err = viper.BindPFlag("file-system.auto-unmount", flagSet.Lookup("auto-unmount")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", "info", "Log level: trace, debug, info, warn, error.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "Log formatter: text or json.")
	if err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to a log file; empty logs to stderr.")
	if err = viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	return nil
}
