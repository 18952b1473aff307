package wine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjzar/xivlauncher/internal/model"
)

type fakeRunner struct {
	out  string
	err  error
	argv []string
}

func (f *fakeRunner) CombinedOutput(_ context.Context, argv []string, _ []string) ([]byte, error) {
	f.argv = argv
	return []byte(f.out), f.err
}

func TestBinary(t *testing.T) {
	p := model.NewProfile("test")
	p.WineType = model.WineSystem
	assert.Equal(t, "wine", Binary(p))

	p.WineType = model.WineCustom
	p.WinePath = "/opt/wine/bin/wine64"
	assert.Equal(t, "/opt/wine/bin/wine64", Binary(p))

	p.WineType = model.WineXIVOnMac
	assert.Contains(t, Binary(p), "XIV on Mac.app")
}

func TestVersionProbe(t *testing.T) {
	p := model.NewProfile("test")
	p.WineType = model.WineSystem

	runner := &fakeRunner{out: "wine-9.0 (Staging)\n"}
	assert.Equal(t, "wine-9.0 (Staging)", Version(context.Background(), runner, p))
	assert.Equal(t, []string{"wine", "--version"}, runner.argv)

	runner = &fakeRunner{err: errors.New("exec: not found")}
	assert.Empty(t, Version(context.Background(), runner, p))
}

func TestBundleVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Info.plist")
	content := `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>CFBundleShortVersionString</key>
	<string>7.0.5</string>
	<key>CFBundleVersion</key>
	<string>705</string>
</dict>
</plist>`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v, err := BundleVersion(path)
	require.NoError(t, err)
	assert.Equal(t, "7.0.5", v)
}

func TestParseRegistry(t *testing.T) {
	content := `WINE REGISTRY Version 2
;; All keys relative to \\User\\S-1-5-21-0-0-0-1000

#arch=win64

[Software\\Wine] 1700000000
#time=1da0000000000
"HideWineExports"="0"

[Software\\Wine\\Explorer\\Desktops] 1700000001
"Default"="1920x1080"
`
	reg := ParseRegistry(content)

	v, ok := reg.Lookup(`HKEY_CURRENT_USER\Software\Wine`, "HideWineExports")
	require.True(t, ok)
	assert.Equal(t, "0", v)

	v, ok = reg.Lookup(`Software\Wine\Explorer\Desktops`, "default")
	require.True(t, ok)
	assert.Equal(t, "1920x1080", v)

	_, ok = reg.Lookup(`Software\Wine\Explorer`, "Desktop")
	assert.False(t, ok)
}

func TestReadUserRegistryMissingPrefix(t *testing.T) {
	reg, err := ReadUserRegistry(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, reg)
}
