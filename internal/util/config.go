package util

// Configuration carries the settings the CLI resolves from flags and the
// environment into the runtime.
type Configuration struct {
	Version   string
	BuildDate string
	Commit    string

	// RootPath anchors relative imports given on the command line.
	RootPath string
	// PolicyFile is the YAML security policy; empty means allow everything.
	PolicyFile string
	// ModulePath entries are directories and zip archives searched by the
	// modulepath: scheme.
	ModulePath []string
	// ProjectDir is the directory holding PklProject.yaml, empty when not
	// running inside a project.
	ProjectDir string
	// CacheDir holds the on-disk source cache; empty disables it.
	CacheDir string

	LogLevel string
	LogFile  string
}
