// Package iohelper reads untrusted response bodies with a size cap.
package iohelper

import (
	"io"

	"github.com/portsweep/portsweep/pkg/defaults"
)

// MaxPageSize caps a pulled page body.
const MaxPageSize int64 = defaults.BufferMedium

// MaxFaviconSize caps a fetched favicon.
const MaxFaviconSize int64 = defaults.BufferSmall

// ReadLimited reads at most limit bytes from r and reports whether more
// data was left unread.
func ReadLimited(r io.Reader, limit int64) (data []byte, truncated bool, err error) {
	if r == nil {
		return nil, false, nil
	}
	data, err = io.ReadAll(io.LimitReader(r, limit+1))
	if int64(len(data)) > limit {
		return data[:limit], true, err
	}
	return data, false, err
}

// DrainAndClose discards up to 64KB of what is left in rc and closes it so
// the connection can be reused.
func DrainAndClose(rc io.ReadCloser) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 64*1024))
	_ = rc.Close()
}
