package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// step is one unit of installer work. progress and message are published
// before run starts so pollers see what is about to happen.
type step struct {
	progress int
	message  messageKey
	run      func(ctx context.Context, j *job) error
}

// job carries one installation through its steps
type job struct {
	runner *Runner
	kind   string
	data   templateData
	spec   ServerSpec

	// download reports whole percentages into the running step's band
	download func(pct int)
}

func (j *job) path(name string) string {
	return filepath.Join(j.data.Dir, name)
}

type provisioner struct {
	download bool
	steps    func() []step
}

// provisioners is the closed set of supported server types
var provisioners = map[string]provisioner{
	"minecraft-java":    {download: true, steps: minecraftJavaSteps},
	"minecraft-bedrock": {download: true, steps: minecraftBedrockSteps},
	"beammp":            {download: true, steps: beamMPSteps},
	"valheim":           {download: false, steps: valheimSteps},
}

// ServerTypes lists the supported server type tags in sorted order
func ServerTypes() []string {
	out := make([]string, 0, len(provisioners))
	for k := range provisioners {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func createDirectory(_ context.Context, j *job) error {
	return os.MkdirAll(j.data.Dir, 0755)
}

func downloadArtifact(ctx context.Context, j *job) error {
	_, err := j.runner.downloader.Download(ctx, j.spec.ArtifactURL, j.path(j.spec.ArtifactFile), j.download)
	return err
}

func writeStartScript(kind string) func(context.Context, *job) error {
	return func(_ context.Context, j *job) error {
		return renderFile(j.path("start.sh"), kind+".start", j.data, 0755)
	}
}

func minecraftJavaSteps() []step {
	return []step{
		{10, msgCreateDirectory, createDirectory},
		{20, msgDownloadMinecraft, downloadArtifact},
		{50, msgWriteStartScript, writeStartScript("minecraft-java")},
		{70, msgAcceptEULA, func(_ context.Context, j *job) error {
			return os.WriteFile(j.path("eula.txt"), []byte("eula=true\n"), 0644)
		}},
		{80, msgWriteProperties, func(_ context.Context, j *job) error {
			return renderFile(j.path(j.spec.ConfigFile), "minecraft-java.properties", j.data, 0644)
		}},
	}
}

var serverPortLine = regexp.MustCompile(`(?m)^server-port=\d+`)

func minecraftBedrockSteps() []step {
	return []step{
		{10, msgCreateDirectory, createDirectory},
		{20, msgDownloadBedrock, downloadArtifact},
		{50, msgExtract, func(ctx context.Context, j *job) error {
			archive := j.path(j.spec.ArtifactFile)
			if _, err := j.runner.extractor.Extract(ctx, archive, j.data.Dir); err != nil {
				return err
			}
			return os.Remove(archive)
		}},
		{70, msgConfigure, func(ctx context.Context, j *job) error {
			if len(j.spec.Executables) > 0 {
				if _, err := j.runner.marker(j.data.Dir, j.spec.Executables); err != nil {
					return err
				}
			}
			return writeStartScript("minecraft-bedrock")(ctx, j)
		}},
		{90, msgUpdateProperties, func(_ context.Context, j *job) error {
			path := j.path(j.spec.ConfigFile)
			content, err := os.ReadFile(path)
			if os.IsNotExist(err) {
				return nil
			}
			if err != nil {
				return err
			}
			updated := serverPortLine.ReplaceAll(content, []byte(fmt.Sprintf("server-port=%d", j.data.Port)))
			return os.WriteFile(path, updated, 0644)
		}},
	}
}

func beamMPSteps() []step {
	return []step{
		{10, msgCreateDirectory, createDirectory},
		{20, msgDownloadBeamMP, func(ctx context.Context, j *job) error {
			if err := downloadArtifact(ctx, j); err != nil {
				return err
			}
			return os.Chmod(j.path(j.spec.ArtifactFile), 0755)
		}},
		{50, msgWriteConfig, func(_ context.Context, j *job) error {
			return writeBeamMPConfig(j.path(j.spec.ConfigFile), j.data)
		}},
		{70, msgWriteStartScript, writeStartScript("beammp")},
	}
}

func valheimSteps() []step {
	return []step{
		{10, msgCreateDirectory, createDirectory},
		{20, msgInstallSteamCMD, func(_ context.Context, j *job) error {
			return renderFile(j.path("install.sh"), "valheim.install", j.data, 0755)
		}},
		{30, msgDownloadValheim, func(ctx context.Context, j *job) error {
			_, err := j.runner.commands.Run(ctx, j.data.Dir, j.path("install.sh"))
			return err
		}},
		{80, msgWriteStartScript, writeStartScript("valheim")},
	}
}
