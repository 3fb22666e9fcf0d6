package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jacobsa/fuse"
	"github.com/spf13/afero"

	"github.com/meshfs/meshfs/cfg"
	"github.com/meshfs/meshfs/internal/clock"
	meshfsfs "github.com/meshfs/meshfs/internal/fs"
	"github.com/meshfs/meshfs/internal/logging"
	"github.com/meshfs/meshfs/internal/provider"
	"github.com/meshfs/meshfs/internal/provider/localfs"
	"github.com/meshfs/meshfs/internal/util"
	"github.com/meshfs/meshfs/internal/vft"
)

// mount builds the provider registry, bootstraps the virtual filesystem
// tree, and mounts it at mountPoint. It blocks the calling goroutine until
// the kernel asks to unmount (mirroring the teacher's mountWithStorageHandle
// + fuse.Mount + mfs.Join pairing), returning the first error encountered.
func mount(ctx context.Context, mountPoint string, c *cfg.Config) error {
	registry, err := buildRegistry(c)
	if err != nil {
		return fmt.Errorf("building provider registry: %w", err)
	}

	logOut, err := logging.New(logging.Config{
		Format:     c.Logging.Format,
		Severity:   c.Logging.Severity,
		FilePath:   c.Logging.FilePath,
		MaxSizeMB:  c.Logging.LogRotate.MaxFileSizeMb,
		MaxBackups: c.Logging.LogRotate.BackupFileCount,
		MaxAgeDays: 0,
	})
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	logEntry := logOut.WithField("mount_point", mountPoint)

	sys := vft.Bootstrap(registry, clock.NewRealClock())

	uid, gid := resolveOwner(c)

	server, err := meshfsfs.NewServer(&meshfsfs.ServerConfig{
		System:   sys,
		FileMode: os.FileMode(c.FileSystem.FileMode),
		DirMode:  os.FileMode(c.FileSystem.DirMode),
		Uid:      uid,
		Gid:      gid,
		Log:      logEntry,
	})
	if err != nil {
		return fmt.Errorf("fs.NewServer: %w", err)
	}

	fsName := c.FileSystem.FsName
	if fsName == "" {
		fsName = "meshfs"
	}

	options := make(map[string]string)
	if c.FileSystem.AutoUnmount {
		options["auto_unmount"] = ""
	}

	mountCfg := &fuse.MountConfig{
		FSName:     fsName,
		Subtype:    "meshfs",
		VolumeName: fsName,
		Options:    options,
	}

	logEntry.Infof("mounting %q with %d configured providers", mountPoint, len(registry.IDs()))
	mfs, err := fuse.Mount(mountPoint, server, mountCfg)
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	return mfs.Join(ctx)
}

// buildRegistry always registers the native-filesystem provider under
// vft.LocalFilesProviderID, rooted at the invoking user's home directory,
// plus any additional backends named in the config file.
func buildRegistry(c *cfg.Config) (*provider.Registry, error) {
	registry := provider.NewRegistry()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}
	registry.Register(vft.LocalFilesProviderID, localfs.New(afero.NewOsFs(), home))

	for _, pc := range c.Providers {
		switch pc.Type {
		case "localfs":
			root, err := util.ResolvePath(pc.Root)
			if err != nil {
				return nil, fmt.Errorf("resolving root for provider %q: %w", pc.Id, err)
			}
			registry.Register(provider.ID(pc.Id), localfs.New(afero.NewOsFs(), root))
		default:
			return nil, fmt.Errorf("provider %q: unsupported type %q", pc.Id, pc.Type)
		}
	}

	return registry, nil
}

func resolveOwner(c *cfg.Config) (uid, gid uint32) {
	uid, gid = uint32(os.Getuid()), uint32(os.Getgid())
	if c.FileSystem.Uid >= 0 {
		uid = uint32(c.FileSystem.Uid)
	}
	if c.FileSystem.Gid >= 0 {
		gid = uint32(c.FileSystem.Gid)
	}
	return uid, gid
}
