package supervisor

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// executableCandidate is one Chromium-family binary found on disk, ranked so
// the supervisor can try the most likely one first.
type executableCandidate struct {
	Path     string
	Name     string
	Priority int // lower is better
	LastUsed time.Time
	Version  string
}

type browserFamily int

const (
	familyChrome browserFamily = iota
	familyChromium
	familyBrave
	familyEdge
	familyOpera
	familyVivaldi
	familyArc
)

var familyNames = map[browserFamily]string{
	familyChrome:   "Google Chrome",
	familyChromium: "Chromium",
	familyBrave:    "Brave Browser",
	familyEdge:     "Microsoft Edge",
	familyOpera:    "Opera",
	familyVivaldi:  "Vivaldi",
	familyArc:      "Arc Browser",
}

type familyInfo struct {
	family   browserFamily
	name     string
	priority int
	paths    []string
}

func supportedFamilies() []familyInfo {
	families := []familyInfo{
		{family: familyChrome, name: familyNames[familyChrome], priority: 1},
		{family: familyChromium, name: familyNames[familyChromium], priority: 2},
		{family: familyBrave, name: familyNames[familyBrave], priority: 3},
		{family: familyEdge, name: familyNames[familyEdge], priority: 4},
		{family: familyArc, name: familyNames[familyArc], priority: 5},
		{family: familyVivaldi, name: familyNames[familyVivaldi], priority: 6},
		{family: familyOpera, name: familyNames[familyOpera], priority: 7},
	}
	for i := range families {
		families[i].paths = platformPaths(families[i].family)
	}
	return families
}

func platformPaths(f browserFamily) []string {
	switch runtime.GOOS {
	case "darwin":
		return darwinPaths(f)
	case "linux":
		return linuxPaths(f)
	case "windows":
		return windowsPaths(f)
	default:
		return nil
	}
}

func darwinPaths(f browserFamily) []string {
	switch f {
	case familyChrome:
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Google Chrome Canary.app/Contents/MacOS/Google Chrome Canary",
		}
	case familyChromium:
		return []string{"/Applications/Chromium.app/Contents/MacOS/Chromium"}
	case familyBrave:
		return []string{"/Applications/Brave Browser.app/Contents/MacOS/Brave Browser"}
	case familyEdge:
		return []string{"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge"}
	case familyArc:
		return []string{"/Applications/Arc.app/Contents/MacOS/Arc"}
	case familyVivaldi:
		return []string{"/Applications/Vivaldi.app/Contents/MacOS/Vivaldi"}
	case familyOpera:
		return []string{"/Applications/Opera.app/Contents/MacOS/Opera"}
	default:
		return nil
	}
}

func linuxPaths(f browserFamily) []string {
	switch f {
	case familyChrome:
		return []string{
			"/usr/bin/google-chrome-stable",
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-beta",
			"/usr/bin/google-chrome-unstable",
		}
	case familyChromium:
		return []string{"/usr/bin/chromium-browser", "/usr/bin/chromium", "/snap/bin/chromium"}
	case familyBrave:
		return []string{"/usr/bin/brave-browser", "/usr/bin/brave", "/snap/bin/brave"}
	case familyEdge:
		return []string{"/usr/bin/microsoft-edge", "/usr/bin/microsoft-edge-stable"}
	case familyOpera:
		return []string{"/usr/bin/opera", "/usr/bin/opera-stable"}
	case familyVivaldi:
		return []string{"/usr/bin/vivaldi", "/usr/bin/vivaldi-stable"}
	default:
		return nil
	}
}

func windowsPaths(f browserFamily) []string {
	localAppData := os.Getenv("LOCALAPPDATA")
	programFiles := os.Getenv("PROGRAMFILES")
	programFilesx86 := os.Getenv("PROGRAMFILES(X86)")

	switch f {
	case familyChrome:
		return []string{
			filepath.Join(programFiles, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(programFilesx86, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(localAppData, "Google", "Chrome", "Application", "chrome.exe"),
		}
	case familyChromium:
		return []string{
			filepath.Join(programFiles, "Chromium", "Application", "chrome.exe"),
			filepath.Join(programFilesx86, "Chromium", "Application", "chrome.exe"),
			filepath.Join(localAppData, "Chromium", "Application", "chrome.exe"),
		}
	case familyBrave:
		return []string{
			filepath.Join(programFiles, "BraveSoftware", "Brave-Browser", "Application", "brave.exe"),
			filepath.Join(programFilesx86, "BraveSoftware", "Brave-Browser", "Application", "brave.exe"),
			filepath.Join(localAppData, "BraveSoftware", "Brave-Browser", "Application", "brave.exe"),
		}
	case familyEdge:
		return []string{
			filepath.Join(programFiles, "Microsoft", "Edge", "Application", "msedge.exe"),
			filepath.Join(programFilesx86, "Microsoft", "Edge", "Application", "msedge.exe"),
			filepath.Join(localAppData, "Microsoft", "Edge", "Application", "msedge.exe"),
		}
	case familyOpera:
		return []string{
			filepath.Join(programFiles, "Opera", "opera.exe"),
			filepath.Join(programFilesx86, "Opera", "opera.exe"),
			filepath.Join(localAppData, "Programs", "Opera", "opera.exe"),
		}
	case familyVivaldi:
		return []string{
			filepath.Join(programFiles, "Vivaldi", "Application", "vivaldi.exe"),
			filepath.Join(programFilesx86, "Vivaldi", "Application", "vivaldi.exe"),
			filepath.Join(localAppData, "Vivaldi", "Application", "vivaldi.exe"),
		}
	default:
		return nil
	}
}

// discoverExecutables enumerates every Chromium-family binary this platform
// knows about, ranked by family priority then recency of use.
func discoverExecutables() []executableCandidate {
	var candidates []executableCandidate

	for _, fam := range supportedFamilies() {
		for _, path := range fam.paths {
			if !isExecutable(path) {
				continue
			}
			c := executableCandidate{
				Path:     path,
				Name:     fam.name,
				Priority: fam.priority,
				LastUsed: lastUsedTime(path, fam.name),
			}
			if v := execVersion(path); v != "" {
				c.Version = v
			}
			candidates = append(candidates, c)
		}
	}

	candidates = append(candidates, discoverFromPATH()...)

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority == candidates[j].Priority {
			return candidates[i].LastUsed.After(candidates[j].LastUsed)
		}
		return candidates[i].Priority < candidates[j].Priority
	})

	seen := make(map[string]bool, len(candidates))
	unique := candidates[:0]
	for _, c := range candidates {
		if seen[c.Path] {
			continue
		}
		seen[c.Path] = true
		unique = append(unique, c)
	}
	return unique
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if runtime.GOOS == "windows" {
		return !info.IsDir()
	}
	return info.Mode()&0111 != 0
}

func discoverFromPATH() []executableCandidate {
	commands := map[string]familyInfo{
		"brave-browser":        {family: familyBrave, name: familyNames[familyBrave], priority: 3},
		"brave":                {family: familyBrave, name: familyNames[familyBrave], priority: 3},
		"google-chrome":        {family: familyChrome, name: familyNames[familyChrome], priority: 1},
		"google-chrome-stable": {family: familyChrome, name: familyNames[familyChrome], priority: 1},
		"chromium-browser":     {family: familyChromium, name: familyNames[familyChromium], priority: 2},
		"chromium":             {family: familyChromium, name: familyNames[familyChromium], priority: 2},
		"microsoft-edge":       {family: familyEdge, name: familyNames[familyEdge], priority: 4},
		"msedge":               {family: familyEdge, name: familyNames[familyEdge], priority: 4},
		"vivaldi":              {family: familyVivaldi, name: familyNames[familyVivaldi], priority: 6},
		"opera":                {family: familyOpera, name: familyNames[familyOpera], priority: 7},
	}

	var candidates []executableCandidate
	for cmd, info := range commands {
		if path, err := exec.LookPath(cmd); err == nil {
			candidates = append(candidates, executableCandidate{
				Path:     path,
				Name:     info.name,
				Priority: info.priority,
			})
		}
	}
	return candidates
}

func lastUsedTime(browserPath, browserName string) time.Time {
	if runtime.GOOS == "darwin" {
		home, err := os.UserHomeDir()
		if err == nil {
			profilePaths := map[string][]string{
				"Google Chrome":  {filepath.Join(home, "Library", "Application Support", "Google", "Chrome")},
				"Brave Browser":  {filepath.Join(home, "Library", "Application Support", "BraveSoftware", "Brave-Browser")},
				"Microsoft Edge": {filepath.Join(home, "Library", "Application Support", "Microsoft Edge")},
				"Chromium":       {filepath.Join(home, "Library", "Application Support", "Chromium")},
				"Vivaldi":        {filepath.Join(home, "Library", "Application Support", "Vivaldi")},
				"Opera":          {filepath.Join(home, "Library", "Application Support", "com.operasoftware.Opera")},
			}
			if paths, ok := profilePaths[browserName]; ok {
				for _, p := range paths {
					if info, err := os.Stat(filepath.Join(p, "Default", "Preferences")); err == nil {
						return info.ModTime()
					}
					if info, err := os.Stat(filepath.Join(p, "Preferences")); err == nil {
						return info.ModTime()
					}
				}
			}
		}
	}
	if info, err := os.Stat(browserPath); err == nil {
		return info.ModTime()
	}
	return time.Time{}
}

func execVersion(browserPath string) string {
	out, err := exec.Command(browserPath, "--version").Output()
	if err != nil {
		return ""
	}
	version := strings.TrimSpace(string(out))
	parts := strings.Fields(version)
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}
	return version
}
