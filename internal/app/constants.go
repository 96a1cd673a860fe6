package app

const (
	Name           = "macsniff"
	HostName       = "macsniff-host"
	SourceURL      = "https://git.skobk.in/skobkin/macsniff"
	ConfigFilename = "config.json"
	DBFilename     = "archive.db"
	LogFilename    = "macsniff.log"
	FlashDir       = "flash"
	DumpsDir       = "dumps"
)
