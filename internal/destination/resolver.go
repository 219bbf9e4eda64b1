package destination

import (
	"os"

	"git.home.luguber.info/inful/nightlybuilder/internal/config"
	"git.home.luguber.info/inful/nightlybuilder/internal/foundation/errors"
)

// Environment fallbacks consulted when no explicit override is given.
const (
	EnvHost        = "DROID_HOST"
	EnvUser        = "DROID_USER"
	EnvRemotePath  = "DROID_PATH"
	EnvPort        = "DROID_HOST_PORT"
	EnvMirror      = "DROID_MIRROR"
	EnvLocalMirror = "DROID_LOCAL_MIRROR"
)

// ErrNoDestination is returned when neither destination can be activated.
var ErrNoDestination = errors.ConfigError("no destination configured for builds").Build()

// Overrides are explicit values, normally from command line flags.
type Overrides struct {
	Host       string
	User       string
	RemotePath string
	LocalPath  string
	Port       string
}

// LookupFunc reads one environment variable; os.LookupEnv in production.
type LookupFunc func(key string) (string, bool)

// Resolution is the pure outcome of resolving overrides, environment and file
// defaults. Nothing has been created on disk or over the network yet.
type Resolution struct {
	Remote *Destination
	Local  *Destination
}

// Active lists the resolved destinations, remote first.
func (r Resolution) Active() []*Destination {
	var out []*Destination
	if r.Remote != nil {
		out = append(out, r.Remote)
	}
	if r.Local != nil {
		out = append(out, r.Local)
	}
	return out
}

// Resolve applies field precedence override > environment > config file and
// the activation rules: local needs a path, remote needs host, user and path.
// When neither activates the run must not proceed, so ErrNoDestination is
// returned before anything is touched.
func Resolve(o Overrides, file config.DestinationsConfig, lookup LookupFunc) (Resolution, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	pick := func(override string, fallback string, envKeys ...string) string {
		if override != "" {
			return override
		}
		for _, k := range envKeys {
			if v, ok := lookup(k); ok && v != "" {
				return v
			}
		}
		return fallback
	}

	var res Resolution

	host := pick(o.Host, file.Remote.Host, EnvHost)
	user := pick(o.User, file.Remote.User, EnvUser)
	remotePath := pick(o.RemotePath, file.Remote.Path, EnvRemotePath)
	if host != "" && user != "" && remotePath != "" {
		res.Remote = &Destination{
			Kind: KindRemote,
			Host: host,
			User: user,
			Path: remotePath,
			Port: pick(o.Port, file.Remote.Port, EnvPort),
		}
	}

	if localPath := pick(o.LocalPath, file.Local.Path, EnvMirror, EnvLocalMirror); localPath != "" {
		res.Local = &Destination{Kind: KindLocal, Path: localPath}
	}

	if res.Remote == nil && res.Local == nil {
		return res, ErrNoDestination.
			WithContext("local", "set --localdir, "+EnvMirror+" or "+EnvLocalMirror).
			WithContext("remote", "set --host/--user/--remotedir or "+EnvHost+", "+EnvUser+", "+EnvRemotePath)
	}
	return res, nil
}
