package supervisor

import (
	"os"
	"path/filepath"
)

// singletonLockNames are the well-known files Chromium drops in a profile's
// data directory to keep two processes from sharing one profile. A browser
// killed uncleanly (as opposed to one that exited via its own shutdown path)
// leaves these behind; Chromium then silently refuses to start against that
// directory. The supervisor removes them before every launch attempt.
var singletonLockNames = []string{"SingletonLock", "SingletonCookie", "SingletonSocket"}

// clearSingletonLocks removes the singleton lock files from both the root of
// the user-data directory and the named profile subdirectory within it.
func clearSingletonLocks(userDataDir, profileName string) {
	dirs := []string{userDataDir}
	if profileName != "" {
		dirs = append(dirs, filepath.Join(userDataDir, profileName))
	}
	for _, dir := range dirs {
		for _, name := range singletonLockNames {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
}
