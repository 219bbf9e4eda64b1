package pipeline

import (
	"git.home.luguber.info/inful/nightlybuilder/internal/config"
)

// DateLayout formats run dates (YYYY.MM.DD).
const DateLayout = "2006.01.02"

// Profile is everything that differs between workflows.
type Profile struct {
	Workflow config.Workflow
	// Sync runs the source sync before building.
	Sync bool
	// DatedLayout puts the run under <base>/<date>; otherwise each target
	// goes under <base>/<codename>.
	DatedLayout   bool
	ExtraEnv      map[string]string
	LogDir        string
	ChangelogDir  string
	StagingName   string
	ManifestTag   string
	MessageFormat string
	ReportTitle   string
}

// ProfileFor returns the profile of w.
func ProfileFor(w config.Workflow) Profile {
	if w == config.WorkflowRelease {
		return Profile{
			Workflow:      config.WorkflowRelease,
			LogDir:        "release_logs",
			StagingName:   "tmp-releasebuilder_zips",
			ManifestTag:   "release",
			MessageFormat: "Release build for %s",
			ReportTitle:   "Release Log",
		}
	}
	return Profile{
		Workflow:      config.WorkflowNightly,
		Sync:          true,
		DatedLayout:   true,
		ExtraEnv:      map[string]string{"NIGHTLY_BUILD": "true"},
		LogDir:        "nightly_logs",
		ChangelogDir:  "nightly_changelogs",
		StagingName:   "tmp-nightlybuilder_zips",
		ManifestTag:   "nightly",
		MessageFormat: "Nightly build for %s",
		ReportTitle:   "Nightly Log",
	}
}

// Layout is the subdirectory appended to every destination base.
func (p Profile) Layout(date string) string {
	if p.DatedLayout {
		return date
	}
	return ""
}
