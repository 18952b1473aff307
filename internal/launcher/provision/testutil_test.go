package provision

import (
	"archive/tar"
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/require"

	"github.com/sjzar/xivlauncher/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func makeZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range sortedKeys(files) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, files[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func makeTar(t *testing.T, w io.Writer, files map[string]string) {
	t.Helper()
	tw := tar.NewWriter(w)
	for _, name := range sortedKeys(files) {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(files[name])),
			Typeflag: tar.TypeReg,
		}))
		_, err := io.WriteString(tw, files[name])
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
}

func makeTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	makeTar(t, zw, files)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func makeTarZst(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	makeTar(t, zw, files)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func makeTarLz4(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	makeTar(t, zw, files)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// distServer fakes the add-on distribution server and the runtime CDN.
type distServer struct {
	AddonVersion    string
	AddonFiles      map[string]string
	RuntimeVersion  string
	RuntimeRequired bool
	AssetVersion    int
	Assets          map[string]string
	UsePackage      bool
	WrongHash       string
	Fail            string

	mu        sync.Mutex
	downloads []string
	tracks    []string
	metaCalls int
}

func newDistServer() *distServer {
	return &distServer{
		AddonVersion: "6.1.0",
		AddonFiles: map[string]string{
			"Dalamud.dll":          "dalamud 6.1.0",
			"Dalamud.Injector.exe": "injector",
			"plugins/README.txt":   "readme",
		},
		RuntimeVersion:  "7.0.3",
		RuntimeRequired: true,
		AssetVersion:    12,
		Assets: map[string]string{
			"UIRes/font.ttf": "font-data",
			"UIRes/logo.png": "logo-data",
		},
		UsePackage: true,
	}
}

func (d *distServer) start(t *testing.T) *httptest.Server {
	t.Helper()
	r := gin.New()

	r.Use(func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/files/") || strings.HasPrefix(path, "/dotnet/") {
			d.mu.Lock()
			d.downloads = append(d.downloads, path)
			fail := d.Fail
			d.mu.Unlock()
			if fail != "" && strings.HasPrefix(path, fail) {
				c.AbortWithStatus(http.StatusNotFound)
				return
			}
		}
		c.Next()
	})

	r.GET("/Dalamud/Release/VersionInfo", func(c *gin.Context) {
		d.mu.Lock()
		d.tracks = append(d.tracks, c.Query("track"))
		d.metaCalls++
		d.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{
			"AssemblyVersion": d.AddonVersion,
			"RuntimeVersion":  d.RuntimeVersion,
			"RuntimeRequired": d.RuntimeRequired,
			"DownloadUrl":     "http://" + c.Request.Host + "/files/dalamud.zip",
		})
	})

	r.GET("/Dalamud/Asset/Meta", func(c *gin.Context) {
		d.mu.Lock()
		d.metaCalls++
		d.mu.Unlock()
		assets := make([]gin.H, 0, len(d.Assets))
		for _, name := range sortedKeys(d.Assets) {
			hash := sha1Hex(d.Assets[name])
			if name == d.WrongHash {
				hash = sha1Hex("something else")
			}
			assets = append(assets, gin.H{
				"Url":      "http://" + c.Request.Host + "/files/asset/" + name,
				"FileName": name,
				"Hash":     hash,
			})
		}
		meta := gin.H{"Version": d.AssetVersion, "Assets": assets}
		if d.UsePackage {
			meta["PackageUrl"] = "http://" + c.Request.Host + "/files/assets.zip"
		}
		c.JSON(http.StatusOK, meta)
	})

	r.GET("/files/dalamud.zip", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/zip", makeZip(t, d.AddonFiles))
	})
	r.GET("/files/assets.zip", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/zip", makeZip(t, d.Assets))
	})
	r.GET("/files/asset/*name", func(c *gin.Context) {
		name := strings.TrimPrefix(c.Param("name"), "/")
		content, ok := d.Assets[name]
		if !ok {
			c.Status(http.StatusNotFound)
			return
		}
		c.String(http.StatusOK, content)
	})
	r.GET("/dotnet/Runtime/:version/:file", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/zip", makeZip(t, map[string]string{
			"shared/Microsoft.NETCore.App/" + c.Param("version") + "/System.Private.CoreLib.dll": "core",
		}))
	})
	r.GET("/dotnet/WindowsDesktop/:version/:file", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/zip", makeZip(t, map[string]string{
			"shared/Microsoft.WindowsDesktop.App/" + c.Param("version") + "/PresentationCore.dll": "desktop",
		}))
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func (d *distServer) Downloads() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.downloads...)
}

func (d *distServer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.downloads = nil
	d.tracks = nil
	d.metaCalls = 0
}

func newTestProvisioner(t *testing.T, srv *httptest.Server) (*Provisioner, string) {
	t.Helper()
	dataDir := t.TempDir()
	return New(srv.Client(), Config{
		DataDir:    dataDir,
		DistribURL: srv.URL,
		RuntimeURL: srv.URL + "/dotnet",
	}), dataDir
}

func addonProfile() *model.Profile {
	p := model.NewProfile("Main")
	p.Dalamud.Enabled = true
	return p
}
