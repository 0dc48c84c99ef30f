package provision

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"github.com/pelletier/go-toml/v2"
)

var scripts = template.Must(template.New("scripts").Parse(`
{{- define "minecraft-java.start" -}}
#!/bin/bash
cd "{{.Dir}}"
java -Xmx{{.RAM}}G -Xms{{.RAM}}G -jar server.jar nogui
{{end}}

{{- define "minecraft-bedrock.start" -}}
#!/bin/bash
cd "{{.Dir}}"
LD_LIBRARY_PATH=. ./bedrock_server
{{end}}

{{- define "beammp.start" -}}
#!/bin/bash
cd "{{.Dir}}"
./BeamMP-Server
{{end}}

{{- define "valheim.install" -}}
#!/bin/bash
steamcmd +force_install_dir "{{.Dir}}" +login anonymous +app_update {{.Spec.SteamAppID}} validate +quit
{{end}}

{{- define "valheim.start" -}}
#!/bin/bash
cd "{{.Dir}}"
export LD_LIBRARY_PATH="./linux64:$LD_LIBRARY_PATH"
export SteamAppId={{.Spec.SteamGameID}}
./valheim_server.x86_64 -name "{{.Name}}" -port {{.Port}} -world "{{.Spec.World}}" -password "{{.Spec.Password}}" -public 0
{{end}}

{{- define "minecraft-java.properties" -}}
server-port={{.Port}}
motd={{.Spec.MOTD}}
max-players={{.Spec.MaxPlayers}}
online-mode=true
difficulty=normal
gamemode=survival
pvp=true
{{end}}
`))

// templateData is what every generated file can refer to
type templateData struct {
	Name string
	Dir  string
	Port int
	RAM  int
	Spec ServerSpec
}

func renderFile(path, name string, data templateData, perm os.FileMode) error {
	var buf bytes.Buffer
	if err := scripts.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), perm); err != nil {
		return err
	}
	// WriteFile keeps the mode of an existing file
	return os.Chmod(path, perm)
}

type beamMPConfig struct {
	General beamMPGeneral `toml:"General"`
	Misc    beamMPMisc    `toml:"Misc"`
}

type beamMPGeneral struct {
	Name        string `toml:"Name"`
	Port        int    `toml:"Port"`
	MaxPlayers  int    `toml:"MaxPlayers"`
	Map         string `toml:"Map"`
	Description string `toml:"Description"`
	Private     bool   `toml:"Private"`
}

type beamMPMisc struct {
	SendErrors        bool `toml:"SendErrors"`
	ImScaredOfUpdates bool `toml:"ImScaredOfUpdates"`
}

func writeBeamMPConfig(path string, data templateData) error {
	out, err := toml.Marshal(beamMPConfig{
		General: beamMPGeneral{
			Name:        data.Name,
			Port:        data.Port,
			MaxPlayers:  data.Spec.MaxPlayers,
			Map:         data.Spec.Map,
			Description: data.Spec.Description,
		},
		Misc: beamMPMisc{SendErrors: true},
	})
	if err != nil {
		return fmt.Errorf("encode ServerConfig.toml: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}
