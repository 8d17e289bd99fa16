package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/docopt/docopt-go"

	"gopkl/internal/evaluator"
	"gopkl/internal/module"
	"gopkl/internal/project"
	"gopkl/internal/repl"
	"gopkl/internal/security"
	"gopkl/internal/util"
)

var (
	// Version is stamped at build time from the VERSION file.
	Version   = "dev"
	BuildDate = "unknown"
	Commit    = "unknown"
)

const usage = `gopkl - a configuration language runtime.

Usage:
  gopkl eval [options] <file>
  gopkl repl [options]
  gopkl project resolve [options]
  gopkl -h | --help
  gopkl --version

Options:
  --root=<dir>          Root directory for relative imports [default: .]
  --policy=<file>       YAML security policy with module/resource allow-lists.
  --module-path=<path>  List-separated directories and zip archives served
                        under the modulepath: scheme.
  --project=<dir>       Project directory holding PklProject.yaml.
  --cache-dir=<dir>     Directory for the on-disk source cache.
  --log-level=<level>   Log level: debug, info, warn, error [default: error]
  --log-file=<file>     Write logs to a file instead of stderr.
  -h --help             Show this help.
  --version             Show version information.
`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:],
		fmt.Sprintf("gopkl version 'v%s' %s %s", Version, BuildDate, Commit))
	if err != nil {
		fail(err)
	}

	config := util.Configuration{
		Version:    Version,
		BuildDate:  BuildDate,
		Commit:     Commit,
		RootPath:   stringOpt(opts, "--root"),
		PolicyFile: stringOpt(opts, "--policy"),
		ProjectDir: stringOpt(opts, "--project"),
		CacheDir:   stringOpt(opts, "--cache-dir"),
		LogLevel:   stringOpt(opts, "--log-level"),
		LogFile:    stringOpt(opts, "--log-file"),
	}
	if mp := stringOpt(opts, "--module-path"); mp != "" {
		config.ModulePath = filepath.SplitList(mp)
	}

	logger := configureLogger(config)
	slog.SetDefault(logger)

	eval, engine, cleanup, err := buildRuntime(config, logger)
	if err != nil {
		fail(err)
	}
	defer cleanup()

	switch {
	case boolOpt(opts, "eval"):
		err = runEval(eval, config, stringOpt(opts, "<file>"))
	case boolOpt(opts, "repl"):
		err = repl.Run(eval, engine, os.Stdout)
	case boolOpt(opts, "project") && boolOpt(opts, "resolve"):
		err = runProjectResolve(config, logger)
	}
	if err != nil {
		fail(err)
	}
}

// buildRuntime assembles the resolution engine and evaluator from the CLI
// configuration. The returned cleanup releases archive handles and the disk
// cache.
func buildRuntime(config util.Configuration, logger *slog.Logger) (*evaluator.Evaluator, *module.Engine, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	sec := security.AllowAll()
	if config.PolicyFile != "" {
		var err error
		sec, err = security.LoadPolicy(config.PolicyFile)
		if err != nil {
			return nil, nil, func() {}, err
		}
	}

	engineOpts := module.Options{
		Security:   sec,
		HTTPClient: http.DefaultClient,
		Logger:     logger,
	}

	if len(config.ModulePath) > 0 {
		mp := module.NewModulePath(config.ModulePath, logger)
		closers = append(closers, func() { mp.Close() })
		engineOpts.ModulePath = mp
	}

	if dir := projectDir(config); dir != "" {
		proj, err := project.NewManager(dir, logger)
		if err != nil {
			cleanup()
			return nil, nil, func() {}, err
		}
		engineOpts.Project = proj
		engineOpts.PackageResolver = module.NewHTTPPackageResolver(http.DefaultClient)
	}

	if config.CacheDir != "" {
		cache, err := module.OpenDiskCache(filepath.Join(config.CacheDir, "sources.db"))
		if err != nil {
			cleanup()
			return nil, nil, func() {}, err
		}
		closers = append(closers, func() { cache.Close() })
		engineOpts.DiskCache = cache
	}

	engine := module.NewEngine(engineOpts)
	eval := evaluator.New(module.NewLoader(engine), logger)
	return eval, engine, cleanup, nil
}

// projectDir picks the explicit project directory, falling back to the
// working directory when it holds a manifest.
func projectDir(config util.Configuration) string {
	if config.ProjectDir != "" {
		return config.ProjectDir
	}
	candidate := config.RootPath
	if _, err := os.Stat(filepath.Join(candidate, project.ManifestFileName)); err == nil {
		return candidate
	}
	return ""
}

func runEval(eval *evaluator.Evaluator, config util.Configuration, file string) error {
	root, err := filepath.Abs(config.RootPath)
	if err != nil {
		return err
	}
	importer := "file://" + filepath.ToSlash(root) + "/"
	mod, err := eval.LoadModule(file, importer)
	if err != nil {
		return err
	}
	fmt.Println(mod.Value.Inspect())
	return nil
}

func runProjectResolve(config util.Configuration, logger *slog.Logger) error {
	dir := projectDir(config)
	if dir == "" {
		return fmt.Errorf("no %s found in %s", project.ManifestFileName, config.RootPath)
	}
	proj, err := project.NewManager(dir, logger)
	if err != nil {
		return err
	}
	deps, err := proj.Dependencies()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		dep := deps[name]
		if dep.Local {
			fmt.Printf("%s\t%s\t(local: %s)\n", name, dep.PackageURI, dep.Path)
		} else {
			fmt.Printf("%s\t%s\n", name, dep.PackageURI)
		}
	}
	return nil
}

func configureLogger(config util.Configuration) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{
		AddSource: false,
		Level:     logLevelFromString(config.LogLevel),
	}
	return slog.New(slog.NewJSONHandler(configureLogWriter(config.LogFile), handlerOpts))
}

func configureLogWriter(logFile string) *os.File {
	if logFile == "" {
		return os.Stderr
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory for '%s': %v; falling back to stderr\n", logFile, err)
		return os.Stderr
	}
	writer, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file '%s': %v; falling back to stderr\n", logFile, err)
		return os.Stderr
	}
	return writer
}

func logLevelFromString(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func stringOpt(opts docopt.Opts, key string) string {
	if v, ok := opts[key].(string); ok {
		return v
	}
	return ""
}

func boolOpt(opts docopt.Opts, key string) bool {
	v, _ := opts[key].(bool)
	return v
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "gopkl: %v\n", err)
	os.Exit(1)
}
