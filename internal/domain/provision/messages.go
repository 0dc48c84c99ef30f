package provision

type messageKey string

const (
	msgCreateDirectory   messageKey = "create_directory"
	msgDownloadMinecraft messageKey = "download_minecraft"
	msgDownloadBedrock   messageKey = "download_bedrock"
	msgDownloadBeamMP    messageKey = "download_beammp"
	msgDownloadValheim   messageKey = "download_valheim"
	msgInstallSteamCMD   messageKey = "install_steamcmd"
	msgExtract           messageKey = "extract"
	msgConfigure         messageKey = "configure"
	msgWriteStartScript  messageKey = "write_start_script"
	msgWriteConfig       messageKey = "write_config"
	msgAcceptEULA        messageKey = "accept_eula"
	msgWriteProperties   messageKey = "write_properties"
	msgUpdateProperties  messageKey = "update_properties"
	msgComplete          messageKey = "complete"
	msgStarted           messageKey = "started"
	msgNotFound          messageKey = "not_found"
	msgInternal          messageKey = "internal"
)

var messages = map[string]map[messageKey]string{
	"de": {
		msgCreateDirectory:   "Erstelle Verzeichnis...",
		msgDownloadMinecraft: "Lade Minecraft Server herunter...",
		msgDownloadBedrock:   "Lade Bedrock Server herunter...",
		msgDownloadBeamMP:    "Lade BeamMP Server herunter...",
		msgDownloadValheim:   "Lade Valheim Server herunter...",
		msgInstallSteamCMD:   "Installiere SteamCMD...",
		msgExtract:           "Entpacke Server-Dateien...",
		msgConfigure:         "Konfiguriere Server...",
		msgWriteStartScript:  "Erstelle Start-Skript...",
		msgWriteConfig:       "Erstelle Konfiguration...",
		msgAcceptEULA:        "Akzeptiere EULA...",
		msgWriteProperties:   "Erstelle server.properties...",
		msgUpdateProperties:  "Aktualisiere server.properties...",
		msgComplete:          "Installation abgeschlossen!",
		msgStarted:           "Server-Installation gestartet",
		msgNotFound:          "Keine Installation gefunden",
		msgInternal:          "Interner Fehler",
	},
	"en": {
		msgCreateDirectory:   "Creating directory...",
		msgDownloadMinecraft: "Downloading Minecraft server...",
		msgDownloadBedrock:   "Downloading Bedrock server...",
		msgDownloadBeamMP:    "Downloading BeamMP server...",
		msgDownloadValheim:   "Downloading Valheim server...",
		msgInstallSteamCMD:   "Installing SteamCMD...",
		msgExtract:           "Extracting server files...",
		msgConfigure:         "Configuring server...",
		msgWriteStartScript:  "Writing start script...",
		msgWriteConfig:       "Writing configuration...",
		msgAcceptEULA:        "Accepting EULA...",
		msgWriteProperties:   "Writing server.properties...",
		msgUpdateProperties:  "Updating server.properties...",
		msgComplete:          "Installation complete!",
		msgStarted:           "Server installation started",
		msgNotFound:          "No installation found",
		msgInternal:          "Internal error",
	},
}

// localize falls back to English, then to the key itself
func localize(locale string, key messageKey) string {
	if m, ok := messages[locale][key]; ok {
		return m
	}
	if m, ok := messages["en"][key]; ok {
		return m
	}
	return string(key)
}
