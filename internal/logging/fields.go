package logging

// Standard attribute keys shared by every component.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"
	FieldAlert     = "alert"

	FieldRecordID   = "record_id"
	FieldEntryID    = "entry_id"
	FieldAudioLevel = "audio_level"
	FieldStorageKey = "storage_key"
	FieldBackend    = "backend"
	FieldIndexPath  = "index_path"
	FieldAttempt    = "attempt"
)
