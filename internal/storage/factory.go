package storage

import "fmt"

// Options selects and configures a backend.
type Options struct {
	Backend string // local, s3 or remote
	BaseDir string

	S3     S3Options
	Remote RemoteOptions
}

// New creates the adapter named by opts.Backend.
func New(opts Options) (Adapter, error) {
	switch opts.Backend {
	case "", "local":
		return NewLocalAdapter(opts.BaseDir)
	case "s3":
		return NewS3Adapter(opts.S3)
	case "remote":
		return NewRemoteAdapter(opts.Remote)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", opts.Backend)
	}
}
