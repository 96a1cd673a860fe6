package events

const (
	TopicPhase         = "device.phase"
	TopicButton        = "button.event"
	TopicMenu          = "menu.changed"
	TopicScanStatus    = "scan.status"
	TopicScanFinished  = "scan.finished"
	TopicStorageSaved  = "storage.saved"
	TopicStorageSpace  = "storage.space"
	TopicDumpLine      = "dump.line"
	TopicDumpFinished  = "dump.finished"
	TopicDeviceFailure = "device.failure"
)
