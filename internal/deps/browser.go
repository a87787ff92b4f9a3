package deps

// browserCandidates are tried in order when no binary is configured.
var browserCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
}

// BrowserRequirement describes the Chrome or Chromium executable used for
// notebook provider login.
func BrowserRequirement(configured string) Requirement {
	return Requirement{
		Name:        "Chrome/Chromium",
		Description: "Used for notebook provider login",
		Command:     configured,
		Candidates:  browserCandidates,
		Optional:    true,
	}
}

// ResolveBrowser returns the browser executable automation will launch.
func ResolveBrowser(configured string) (string, error) {
	return BrowserRequirement(configured).resolve()
}

// CheckBrowser reports the browser used for provider login.
func CheckBrowser(configured string) Status {
	return CheckBinaries([]Requirement{BrowserRequirement(configured)})[0]
}
