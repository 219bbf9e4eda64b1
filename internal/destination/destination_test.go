package destination

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/nightlybuilder/internal/command"
	"git.home.luguber.info/inful/nightlybuilder/internal/config"
	"git.home.luguber.info/inful/nightlybuilder/internal/foundation/errors"
)

func envMap(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestAddress(t *testing.T) {
	remote := &Destination{Kind: KindRemote, Host: "h", User: "u", Path: "/srv/builds"}
	assert.Equal(t, "u@h:/srv/builds/", remote.Address(""))
	assert.Equal(t, "u@h:/srv/builds/passion/", remote.Address("passion"))

	local := &Destination{Kind: KindLocal, Path: "/mirror/"}
	assert.Equal(t, "/mirror/", local.Address(""))
	assert.Equal(t, filepath.Join("/mirror", "passion")+"/", local.Address("passion"))
}

func TestResolvePrecedence(t *testing.T) {
	file := config.DestinationsConfig{
		Remote: config.RemoteConfig{Host: "file-host", User: "file-user", Path: "/file", Port: "2200"},
		Local:  config.LocalConfig{Path: "/file-mirror"},
	}
	env := envMap(map[string]string{
		EnvHost:   "env-host",
		EnvMirror: "/env-mirror",
	})

	res, err := Resolve(Overrides{User: "flag-user"}, file, env)
	require.NoError(t, err)
	require.NotNil(t, res.Remote)
	require.NotNil(t, res.Local)

	assert.Equal(t, "env-host", res.Remote.Host)
	assert.Equal(t, "flag-user", res.Remote.User)
	assert.Equal(t, "/file", res.Remote.Path)
	assert.Equal(t, "2200", res.Remote.Port)
	assert.Equal(t, "/env-mirror", res.Local.Path)
}

func TestResolveLocalMirrorFallback(t *testing.T) {
	res, err := Resolve(Overrides{}, config.DestinationsConfig{}, envMap(map[string]string{
		EnvMirror:      "",
		EnvLocalMirror: "/second",
	}))
	require.NoError(t, err)
	assert.Nil(t, res.Remote)
	require.NotNil(t, res.Local)
	assert.Equal(t, "/second", res.Local.Path)
}

func TestResolveRemoteNeedsAllFields(t *testing.T) {
	res, err := Resolve(Overrides{Host: "h", User: "u", LocalPath: "/m"}, config.DestinationsConfig{}, envMap(nil))
	require.NoError(t, err)
	assert.Nil(t, res.Remote)
	assert.Len(t, res.Active(), 1)
}

func TestResolveNothingConfigured(t *testing.T) {
	_, err := Resolve(Overrides{}, config.DestinationsConfig{}, envMap(nil))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrNoDestination))
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	assert.True(t, errors.IsFatal(err))
}

func TestActivateAppliesLayoutAndCreatesDirs(t *testing.T) {
	base := t.TempDir()
	rec := &command.Recorder{}
	res := Resolution{
		Remote: &Destination{Kind: KindRemote, Host: "h", User: "u", Path: "/srv", Port: "2222"},
		Local:  &Destination{Kind: KindLocal, Path: base},
	}

	set, err := Activate(context.Background(), res, "2024.03.05", &Provisioner{Runner: rec, SSH: "ssh"})
	require.NoError(t, err)
	require.Len(t, set.Active(), 2)
	assert.True(t, set.Has(KindRemote))
	assert.True(t, set.Has(KindLocal))

	info, err := os.Stat(filepath.Join(base, "2024.03.05"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	calls := rec.CallsTo("ssh")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"-p", "2222", "u@h", "test -d '/srv/2024.03.05' || mkdir -p '/srv/2024.03.05'"}, calls[0].Spec.Args)
	assert.Equal(t, "u@h:/srv/2024.03.05/", set.Active()[0].Address(""))
}

func TestActivateDropsFailingRemote(t *testing.T) {
	rec := &command.Recorder{Handler: func(context.Context, command.Spec) error {
		return &command.ExitError{Command: "ssh", Code: 255}
	}}
	res := Resolution{
		Remote: &Destination{Kind: KindRemote, Host: "h", User: "u", Path: "/srv"},
		Local:  &Destination{Kind: KindLocal, Path: t.TempDir()},
	}

	set, err := Activate(context.Background(), res, "", &Provisioner{Runner: rec, SSH: "ssh"})
	require.NoError(t, err)
	assert.False(t, set.Has(KindRemote))
	assert.True(t, set.Has(KindLocal))
}

func TestActivateAllFailedIsFatal(t *testing.T) {
	rec := &command.Recorder{Handler: func(context.Context, command.Spec) error {
		return &command.ExitError{Command: "ssh", Code: 255}
	}}
	res := Resolution{Remote: &Destination{Kind: KindRemote, Host: "h", User: "u", Path: "/srv"}}

	_, err := Activate(context.Background(), res, "", &Provisioner{Runner: rec, SSH: "ssh"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryDestination))
	assert.True(t, errors.IsFatal(err))
}

func TestEnsureDirWithoutPort(t *testing.T) {
	rec := &command.Recorder{}
	p := &Provisioner{Runner: rec, SSH: "/usr/bin/ssh"}
	d := &Destination{Kind: KindRemote, Host: "h", User: "u", Path: "/srv"}

	require.NoError(t, p.EnsureDir(context.Background(), d, "it's"))
	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/usr/bin/ssh", calls[0].Spec.Path)
	assert.Equal(t, []string{"u@h", `test -d '/srv/it'\''s' || mkdir -p '/srv/it'\''s'`}, calls[0].Spec.Args)
}
