package version

// Set at build time with -ldflags "-X github.com/kubev2v/meeting-intelligence/pkg/version.gitVersion=..."
var (
	gitVersion = "unknown"
	gitCommit  = ""
)

type Info struct {
	GitVersion string
	GitCommit  string
}

func Get() Info {
	return Info{GitVersion: gitVersion, GitCommit: gitCommit}
}
