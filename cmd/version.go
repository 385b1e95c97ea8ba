package cmd

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/kozaktomas/face-gate/internal/database"
	"github.com/spf13/cobra"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and the compiled-in storage backends",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		info, _ := debug.ReadBuildInfo()
		printVersion(cmd.OutOrStdout(), buildVersion(info))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

type versionInfo struct {
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	Backends  []string
}

// buildVersion fills unset ldflags values from the module build info, which
// `go install` builds carry instead.
func buildVersion(info *debug.BuildInfo) versionInfo {
	v := versionInfo{
		Version:   Version,
		Commit:    CommitSHA,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Backends:  database.RegisteredBackends(),
	}
	if info == nil {
		return v
	}

	if v.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		v.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if v.Commit == "unknown" {
				v.Commit = s.Value
			}
		case "vcs.time":
			if v.BuildDate == "unknown" {
				v.BuildDate = s.Value
			}
		}
	}
	if info.GoVersion != "" {
		v.GoVersion = info.GoVersion
	}
	return v
}

func printVersion(w io.Writer, v versionInfo) {
	fmt.Fprintf(w, "face-gate %s\n", v.Version)
	fmt.Fprintf(w, "  Commit:   %s\n", v.Commit)
	fmt.Fprintf(w, "  Built:    %s\n", v.BuildDate)
	fmt.Fprintf(w, "  Go:       %s\n", v.GoVersion)
	fmt.Fprintf(w, "  Backends: %s\n", strings.Join(v.Backends, ", "))
}
