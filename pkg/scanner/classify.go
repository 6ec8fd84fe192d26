package scanner

import "strings"

// Followup is the secondary probe a primary scan result calls for.
type Followup int

const (
	FollowupNone Followup = iota
	FollowupFTPAnon
	FollowupNFSShowmount
)

// Script returns the NSE script name run for the follow-up.
func (f Followup) Script() string {
	switch f {
	case FollowupFTPAnon:
		return "ftp-anon"
	case FollowupNFSShowmount:
		return "nfs-showmount"
	default:
		return ""
	}
}

func (f Followup) String() string {
	if s := f.Script(); s != "" {
		return s
	}
	return "none"
}

// Classification is what the raw XML of one primary scan says about the
// port. Filtered output is discarded without an artifact or discovery; Web
// marks an HTTP service worth enriching.
type Classification struct {
	Filtered bool
	Web      bool
	Followup Followup
}

var (
	filteredMarkers = []string{`state="filtered"`, `tcpwrapped`}
	webMarkers      = []string{`portid="80"`, `service name="http"`}
	ftpMarkers      = []string{`portid="21"`, `service name="ftp"`}
	nfsMarkers      = []string{`portid="111"`, `portid="2049"`, `service name="rpcbind"`}
)

// Classify inspects scan output by substring, without parsing the XML.
// An FTP signature wins over an NFS one when both are present.
func Classify(output string) Classification {
	c := Classification{
		Filtered: containsAny(output, filteredMarkers),
		Web:      containsAny(output, webMarkers),
	}
	switch {
	case containsAny(output, ftpMarkers):
		c.Followup = FollowupFTPAnon
	case containsAny(output, nfsMarkers):
		c.Followup = FollowupNFSShowmount
	}
	return c
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
