package cmd

import (
	"runtime/debug"
)

type (
	// BuildInfo is the version info of the binary
	BuildInfo struct {
		ModVersion string
		GoVersion  string
		VCSRev     string
	}
)

func ReadVCSBuildInfo() BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return BuildInfo{ModVersion: "dev"}
	}
	res := BuildInfo{
		ModVersion: info.Main.Version,
		GoVersion:  info.GoVersion,
	}
	for _, i := range info.Settings {
		if i.Key == "vcs.revision" {
			res.VCSRev = i.Value
		}
	}
	if res.ModVersion == "" || res.ModVersion == "(devel)" {
		res.ModVersion = "dev"
		if res.VCSRev != "" {
			res.ModVersion = "dev-" + res.VCSRev
		}
	}
	return res
}
