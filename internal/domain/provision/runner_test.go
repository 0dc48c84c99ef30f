package provision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/HomePanel/backend/internal/domain/inventory"
	"github.com/GriffinCanCode/HomePanel/backend/internal/domain/task"
	"github.com/GriffinCanCode/HomePanel/backend/internal/providers/installer"
)

type fakeDownloader struct {
	mu      sync.Mutex
	urls    []string
	content func(dest string) error
	err     error
	panics  bool
	onPct   func(pct int)
}

func (f *fakeDownloader) Download(_ context.Context, url, dest string, progress func(int)) (int64, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()

	if f.panics {
		panic("mirror exploded")
	}
	if f.err != nil {
		return 0, f.err
	}
	for _, pct := range []int{0, 25, 50, 75, 100} {
		progress(pct)
		if f.onPct != nil {
			f.onPct(pct)
		}
	}
	if f.content != nil {
		return 1, f.content(dest)
	}
	return 1, os.WriteFile(dest, []byte("artifact"), 0644)
}

type fakeCommands struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeCommands) Run(_ context.Context, dir, name string, _ ...string) (*installer.CommandResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if f.err != nil {
		return &installer.CommandResult{ExitCode: 1}, f.err
	}
	return &installer.CommandResult{}, nil
}

type fixture struct {
	runner    *Runner
	tasks     *task.Registry
	inventory *inventory.Store
	download  *fakeDownloader
	commands  *fakeCommands
	baseDir   string
}

func newFixture(t *testing.T, locale string) *fixture {
	t.Helper()
	dir := t.TempDir()

	store, err := inventory.Open(filepath.Join(dir, "gameservers.json"))
	require.NoError(t, err)
	catalog, err := LoadCatalog("")
	require.NoError(t, err)

	f := &fixture{
		tasks:     task.NewRegistry(0, nil),
		inventory: store,
		download:  &fakeDownloader{},
		commands:  &fakeCommands{},
		baseDir:   filepath.Join(dir, "servers"),
	}
	f.runner = NewRunner(Deps{
		Tasks:      f.tasks,
		Inventory:  store,
		Catalog:    catalog,
		Downloader: f.download,
		Extractor:  installer.NewExtractor(nil),
		Commands:   f.commands,
	}, Options{BaseDir: f.baseDir, Locale: locale}, zaptest.NewLogger(t))
	return f
}

func (f *fixture) create(t *testing.T, req Request) task.Snapshot {
	t.Helper()
	id, err := f.runner.Create(context.Background(), req)
	require.NoError(t, err)
	f.runner.Wait()
	return f.tasks.Get(id)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, "de")

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"missing type", Request{Name: "a", Port: 1}, ErrInvalidRequest},
		{"missing name", Request{Type: "beammp", Port: 1}, ErrInvalidRequest},
		{"missing port", Request{Type: "beammp", Name: "a"}, ErrInvalidRequest},
		{"traversal name", Request{Type: "beammp", Name: "../etc", Port: 1}, ErrInvalidRequest},
		{"name with space", Request{Type: "beammp", Name: "my server", Port: 1}, ErrInvalidRequest},
		{"port too high", Request{Type: "beammp", Name: "a", Port: 70000}, ErrInvalidRequest},
		{"negative ram", Request{Type: "beammp", Name: "a", Port: 1, RAM: -2}, ErrInvalidRequest},
		{"unknown type", Request{Type: "factorio", Name: "a", Port: 1}, ErrUnknownServerType},
		{"invalid beats unknown type", Request{Type: "factorio", Name: "a"}, ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := f.runner.Create(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, id)
		})
	}

	assert.Empty(t, f.tasks.List())
	assert.Empty(t, f.inventory.List())
	_, err := os.Stat(f.baseDir)
	assert.True(t, os.IsNotExist(err), "no directory created")
}

func TestCreateDuplicateName(t *testing.T) {
	f := newFixture(t, "de")
	f.create(t, Request{Type: "beammp", Name: "racing", Port: 30814})

	_, err := f.runner.Create(context.Background(), Request{Type: "valheim", Name: "racing", Port: 2456})
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.Len(t, f.tasks.List(), 1, "no second task")
	assert.Len(t, f.inventory.List(), 1)
}

func TestMinecraftJava(t *testing.T) {
	f := newFixture(t, "de")
	snap := f.create(t, Request{Type: "minecraft-java", Name: "survival", Port: 25570, RAM: 6})

	assert.Equal(t, task.PhaseComplete, snap.Phase)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, "Installation abgeschlossen!", snap.Message)

	dir := filepath.Join(f.baseDir, "survival")
	assert.Equal(t, "artifact", readFile(t, filepath.Join(dir, "server.jar")))
	assert.Contains(t, readFile(t, filepath.Join(dir, "start.sh")), "java -Xmx6G -Xms6G -jar server.jar nogui")
	assert.Equal(t, "eula=true\n", readFile(t, filepath.Join(dir, "eula.txt")))

	props := readFile(t, filepath.Join(dir, "server.properties"))
	assert.Contains(t, props, "server-port=25570\n")
	assert.Contains(t, props, "max-players=20\n")

	info, err := os.Stat(filepath.Join(dir, "start.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	rec, ok := f.inventory.Get("survival")
	require.True(t, ok)
	assert.Equal(t, inventory.StatusStopped, rec.Status)
	assert.Equal(t, snap.ID, rec.TaskID)
	assert.Equal(t, filepath.Join(dir, "server.properties"), rec.ConfigFile)
	assert.Equal(t, 6, rec.RAM)

	require.Len(t, f.download.urls, 1)
	assert.Contains(t, f.download.urls[0], "piston-data.mojang.com")
}

func TestMinecraftBedrock(t *testing.T) {
	f := newFixture(t, "en")
	f.download.content = func(dest string) error {
		out, err := os.Create(dest)
		if err != nil {
			return err
		}
		zw := zip.NewWriter(out)
		for name, body := range map[string]string{
			"bedrock_server":    "ELF",
			"server.properties": "server-name=Dedicated Server\nserver-port=19132\nserver-portv6=19133\n",
		} {
			w, _ := zw.Create(name)
			_, _ = w.Write([]byte(body))
		}
		if err := zw.Close(); err != nil {
			return err
		}
		return out.Close()
	}

	snap := f.create(t, Request{Type: "minecraft-bedrock", Name: "bedrock", Port: 19200})
	require.Equal(t, task.PhaseComplete, snap.Phase, snap.Message)
	assert.Equal(t, "Installation complete!", snap.Message)

	dir := filepath.Join(f.baseDir, "bedrock")
	_, err := os.Stat(filepath.Join(dir, "bedrock.zip"))
	assert.True(t, os.IsNotExist(err), "archive removed after extraction")

	info, err := os.Stat(filepath.Join(dir, "bedrock_server"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0100, "bedrock_server is executable")

	props := readFile(t, filepath.Join(dir, "server.properties"))
	assert.Contains(t, props, "server-port=19200\n")
	assert.Contains(t, props, "server-portv6=19133\n")
	assert.Contains(t, readFile(t, filepath.Join(dir, "start.sh")), "LD_LIBRARY_PATH=. ./bedrock_server")
}

func TestBeamMP(t *testing.T) {
	f := newFixture(t, "de")
	snap := f.create(t, Request{Type: "beammp", Name: "racing", Port: 30814})
	require.Equal(t, task.PhaseComplete, snap.Phase, snap.Message)

	dir := filepath.Join(f.baseDir, "racing")
	info, err := os.Stat(filepath.Join(dir, "BeamMP-Server"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	var cfg beamMPConfig
	require.NoError(t, toml.Unmarshal([]byte(readFile(t, filepath.Join(dir, "ServerConfig.toml"))), &cfg))
	assert.Equal(t, "racing", cfg.General.Name)
	assert.Equal(t, 30814, cfg.General.Port)
	assert.Equal(t, 8, cfg.General.MaxPlayers)
	assert.Equal(t, "/levels/gridmap_v2/info.json", cfg.General.Map)
	assert.True(t, cfg.Misc.SendErrors)
	assert.False(t, cfg.General.Private)
}

func TestValheim(t *testing.T) {
	f := newFixture(t, "de")
	snap := f.create(t, Request{Type: "valheim", Name: "viking", Port: 2456})
	require.Equal(t, task.PhaseComplete, snap.Phase, snap.Message)

	dir := filepath.Join(f.baseDir, "viking")
	assert.Equal(t, []string{filepath.Join(dir, "install.sh")}, f.commands.calls)
	assert.Contains(t, readFile(t, filepath.Join(dir, "install.sh")), "+app_update 896660 validate")

	start := readFile(t, filepath.Join(dir, "start.sh"))
	assert.Contains(t, start, `-name "viking" -port 2456`)
	assert.Contains(t, start, "SteamAppId=892970")
	assert.Empty(t, f.download.urls, "valheim downloads through steamcmd")
}

func TestSetupToolFailureFailsTask(t *testing.T) {
	f := newFixture(t, "de")
	f.commands.err = errors.New("install.sh exited with status 127: steamcmd: command not found")

	snap := f.create(t, Request{Type: "valheim", Name: "viking", Port: 2456})
	assert.Equal(t, task.PhaseFailed, snap.Phase)
	assert.Equal(t, "Lade Valheim Server herunter...: install.sh exited with status 127: steamcmd: command not found", snap.Message)
	assert.Equal(t, 30, snap.Progress)

	_, err := os.Stat(filepath.Join(f.baseDir, "viking", "start.sh"))
	assert.True(t, os.IsNotExist(err), "later steps never run")

	rec, _ := f.inventory.Get("viking")
	assert.Equal(t, inventory.StatusError, rec.Status)
}

func TestDownloadFailureKeepsDirectory(t *testing.T) {
	f := newFixture(t, "en")
	f.download.err = errors.New("download failed: HTTP 503")

	snap := f.create(t, Request{Type: "minecraft-java", Name: "broken", Port: 25565})
	assert.Equal(t, task.PhaseFailed, snap.Phase)
	assert.Equal(t, "Downloading Minecraft server...: download failed: HTTP 503", snap.Message)

	dir := filepath.Join(f.baseDir, "broken")
	_, err := os.Stat(dir)
	assert.NoError(t, err, "directory from the first step remains")
	_, err = os.Stat(filepath.Join(dir, "eula.txt"))
	assert.True(t, os.IsNotExist(err))

	rec, _ := f.inventory.Get("broken")
	assert.Equal(t, inventory.StatusError, rec.Status)
}

func TestPanicFailsTask(t *testing.T) {
	f := newFixture(t, "de")
	f.download.panics = true

	snap := f.create(t, Request{Type: "beammp", Name: "boom", Port: 30814})
	assert.Equal(t, task.PhaseFailed, snap.Phase)
	assert.Equal(t, "Interner Fehler: mirror exploded", snap.Message)

	rec, _ := f.inventory.Get("boom")
	assert.Equal(t, inventory.StatusError, rec.Status)
}

func TestDownloadProgressStaysInBand(t *testing.T) {
	f := newFixture(t, "de")
	var seen []int
	var id string
	var mu sync.Mutex
	f.download.onPct = func(int) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, f.tasks.Get(id).Progress)
	}

	// Hold the download until id is known.
	mu.Lock()
	id, err := f.runner.Create(context.Background(), Request{Type: "minecraft-java", Name: "progress", Port: 25565})
	mu.Unlock()
	require.NoError(t, err)
	f.runner.Wait()

	require.Len(t, seen, 5)
	for i, p := range seen {
		assert.GreaterOrEqual(t, p, 20)
		assert.Less(t, p, 50)
		if i > 0 {
			assert.GreaterOrEqual(t, p, seen[i-1])
		}
	}
	assert.Equal(t, task.PhaseComplete, f.tasks.Get(id).Phase)
}

func TestStatusUnknown(t *testing.T) {
	f := newFixture(t, "de")
	snap := f.runner.Status("nothing_here")
	assert.Equal(t, task.PhaseUnknown, snap.Phase)
	assert.Equal(t, "Keine Installation gefunden", snap.Message)
	assert.Equal(t, 0, snap.Progress)
}

func TestCatalog(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	for _, kind := range ServerTypes() {
		_, ok := c.Spec(kind)
		assert.True(t, ok, kind)
	}

	_, err = ParseCatalog([]byte("servers:\n  beammp:\n    config_file: x\n"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	override := `
servers:
  minecraft-java:
    artifact_url: https://mirror.lan/server.jar
    artifact_file: server.jar
    config_file: server.properties
  minecraft-bedrock:
    artifact_url: https://mirror.lan/bedrock.zip
    artifact_file: bedrock.zip
    config_file: server.properties
  beammp:
    artifact_url: https://mirror.lan/beammp
    artifact_file: BeamMP-Server
    config_file: ServerConfig.toml
  valheim:
    config_file: start.sh
`
	require.NoError(t, os.WriteFile(path, []byte(override), 0644))
	c, err = LoadCatalog(path)
	require.NoError(t, err)
	spec, _ := c.Spec("minecraft-java")
	assert.Equal(t, "https://mirror.lan/server.jar", spec.ArtifactURL)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
