package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlags registers every Config field as a flag on fs and binds it
// into viper, the way the teacher's cfg.BindFlags wires gcsfuse's mount
// flags. Flag names match the mapstructure tags in config.go so a config
// file entry and a flag resolve to the same key.
func BindFlags(fs *pflag.FlagSet) error {
	d := DefaultConfig()

	fs.String("disk-image", d.DiskImagePath, "path to the MINIX-compatible disk image; empty selects an in-memory scratch disk")
	fs.Bool("read-only", d.ReadOnly, "mount the root filesystem read-only")
	fs.Int("nr-tasks", d.NRTasks, "size of the task table (C6/C7)")
	fs.Int("nr-open", d.NROpen, "per-process open file descriptor limit")
	fs.Int("nr-buf", d.NRBuf, "number of buffer cache slots (C3)")
	fs.Int("nr-request", d.NRRequest, "size of the block request pool (C4)")
	fs.Int("nr-inode", d.NRInode, "size of the in-memory inode cache (C5)")
	fs.Int("nr-super", d.NRSuper, "number of mountable superblock slots (C5)")
	fs.Int("nr-file", d.NRFile, "size of the system-wide open file table")
	fs.Bool("no-truncate-names", d.NoTruncateNames, "reject directory names over 14 bytes instead of truncating them")
	fs.Int("paging-cap-mib", d.PagingCapMiB, "ceiling, in MiB, on the page frame allocator's pool")
	fs.String("logging.severity", string(d.Logging.Severity), "TRACE, DEBUG, INFO, WARNING, ERROR or OFF")
	fs.String("logging.format", string(d.Logging.Format), "text or json")

	return viper.BindPFlags(fs)
}
