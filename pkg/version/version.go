package version

import (
	"flag"
	"runtime"
)

// Set through -ldflags "-X hackmate/pkg/version.Version=..." at build time.
var (
	Version   = "develop"
	GitCommit = ""
	BuildDate = ""
)

type BuildInfo struct {
	Version   string `json:"version,omitempty"`
	GitCommit string `json:"gitCommit,omitempty"`
	BuildDate string `json:"buildDate,omitempty"`
	GoVersion string `json:"goVersion,omitempty"`
}

func Get() BuildInfo {
	v := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}

	if flag.Lookup("test.v") != nil {
		v.GoVersion = ""
	}
	return v
}

// String is the one-line form used in logs and the server banner.
func (b BuildInfo) String() string {
	s := b.Version
	if b.GitCommit != "" {
		commit := b.GitCommit
		if len(commit) > 7 {
			commit = commit[:7]
		}
		s += " (" + commit + ")"
	}
	return s
}
