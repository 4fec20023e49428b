// Package version хранит данные сборки, заданные через -ldflags.
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// BuildInfo - данные сборки CRM service.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version,omitempty"`
}

// Get возвращает данные сборки. Если -ldflags не заданы, commit и date берутся
// из VCS-меток, которые go build записывает в бинарь.
func Get() BuildInfo {
	info := BuildInfo{Version: version, Commit: commit, Date: date}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	return fromBuildInfo(info, bi)
}

func fromBuildInfo(info BuildInfo, bi *debug.BuildInfo) BuildInfo {
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info.Commit == "unknown":
			info.Commit = s.Value
		case s.Key == "vcs.time" && info.Date == "unknown":
			info.Date = s.Value
		}
	}
	return info
}

// GetVersion возвращает версию, заданную через ldflags.
func GetVersion() string { return version }

func (b BuildInfo) String() string {
	return fmt.Sprintf("crm-service version=%s commit=%s date=%s", b.Version, b.Commit, b.Date)
}
