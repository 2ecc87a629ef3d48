package version

// Flag contains extra info about the version. It is helpful for tracking
// development builds. Release builds leave it empty.
const Flag = ""

var (
	// Version is the full version string
	Version = "0.2.0"

	// GitCommit is set with --ldflags "-X github.com/mosaicnetworks/murmur/src/version.GitCommit=$(git rev-parse HEAD)"
	GitCommit string
)

func init() {
	if Flag != "" {
		Version += "-" + Flag
	}

	if len(GitCommit) >= 8 {
		Version += "-" + GitCommit[:8]
	}
}
