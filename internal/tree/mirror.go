package tree

import "time"

// MirrorItem pairs the locally cached view of one synced object with the
// cloud's view of it. It is a reporting record and is never linked into the
// item graph.
type MirrorItem struct {
	LocalStableID string
	StableID      string
	Volume        string
	Parent        string

	LocalFilename string
	CloudFilename string
	LocalMtime    string // epoch milliseconds
	CloudMtime    string // epoch milliseconds
	LocalMD5      string
	CloudMD5      string
	LocalSize     int64
	CloudSize     int64
	LocalVersion  int64
	CloudVersion  int64

	Shared   bool
	ReadOnly bool
	IsRoot   bool
}

func (m *MirrorItem) LocalMtimeUTC() (time.Time, error) {
	return epochMillisUTC("local_mtime", m.LocalMtime)
}

func (m *MirrorItem) CloudMtimeUTC() (time.Time, error) {
	return epochMillisUTC("cloud_mtime", m.CloudMtime)
}

// Differences names the attributes on which the local and cloud views
// disagree. Mtimes are compared on their raw value.
func (m *MirrorItem) Differences() []string {
	var diff []string
	if m.LocalFilename != m.CloudFilename {
		diff = append(diff, "filename")
	}
	if m.LocalMtime != m.CloudMtime {
		diff = append(diff, "mtime")
	}
	if m.LocalMD5 != m.CloudMD5 {
		diff = append(diff, "md5")
	}
	if m.LocalSize != m.CloudSize {
		diff = append(diff, "size")
	}
	if m.LocalVersion != m.CloudVersion {
		diff = append(diff, "version")
	}
	return diff
}

// InSync reports whether both views agree on every compared attribute.
func (m *MirrorItem) InSync() bool {
	return len(m.Differences()) == 0
}
