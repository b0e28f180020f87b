package config

import (
	"reflect"
	"time"
)

// ConfigDiff describes what changed between two configs. Hot-reloadable
// fields are reported individually; everything else is listed in
// RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	PollIntervalChanged bool
	NewPollInterval     time.Duration

	XPPerWordChanged bool
	NewXPPerWord     int

	// RestartRequired names the top-level sections that changed in ways
	// that only take effect after a restart.
	RestartRequired []string
}

// Changed reports whether anything differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.PollIntervalChanged || d.XPPerWordChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Enrichment.PollInterval != new.Enrichment.PollInterval {
		d.PollIntervalChanged = true
		d.NewPollInterval = new.Enrichment.PollInterval
	}
	if old.Vocabulary.XPPerWord != new.Vocabulary.XPPerWord {
		d.XPPerWordChanged = true
		d.NewXPPerWord = new.Vocabulary.XPPerWord
	}

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	if !reflect.DeepEqual(oldServer, newServer) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Storage != new.Storage {
		d.RestartRequired = append(d.RestartRequired, "storage")
	}
	if !reflect.DeepEqual(old.Capture, new.Capture) {
		d.RestartRequired = append(d.RestartRequired, "capture")
	}
	oldEnrich, newEnrich := old.Enrichment, new.Enrichment
	oldEnrich.PollInterval, newEnrich.PollInterval = 0, 0
	if oldEnrich != newEnrich {
		d.RestartRequired = append(d.RestartRequired, "enrichment")
	}
	oldVocab, newVocab := old.Vocabulary, new.Vocabulary
	oldVocab.XPPerWord, newVocab.XPPerWord = 0, 0
	if oldVocab != newVocab {
		d.RestartRequired = append(d.RestartRequired, "vocabulary")
	}
	if old.Mastery != new.Mastery {
		d.RestartRequired = append(d.RestartRequired, "mastery")
	}
	if old.Telemetry != new.Telemetry {
		d.RestartRequired = append(d.RestartRequired, "telemetry")
	}

	return d
}
