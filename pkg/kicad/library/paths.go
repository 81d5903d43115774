// Package library resolves KiCad symbol definitions across project and
// system library locations, including inheritance via extends chains.
package library

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
)

// kicadVersions lists versioned install dirs, newest first.
var kicadVersions = []string{"9.0", "8.0", "7.0"}

// symbolDirEnvVars name the environment variables KiCad itself consults for
// the symbol library location.
var symbolDirEnvVars = []string{
	"KICAD_SYMBOL_DIR",
	"KICAD9_SYMBOL_DIR",
	"KICAD8_SYMBOL_DIR",
	"KICAD7_SYMBOL_DIR",
}

// UserConfigDir returns KiCad's per-user configuration directory, preferring
// the newest versioned subdirectory.
func UserConfigDir() (string, bool) {
	var base string

	switch runtime.GOOS {
	case "windows":
		appdata := os.Getenv("APPDATA")
		if appdata == "" {
			return "", false
		}
		base = filepath.Join(appdata, "kicad")

	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", false
		}
		base = filepath.Join(home, "Library", "Preferences", "kicad")

	default:
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", false
			}
			configHome = filepath.Join(home, ".config")
		}
		base = filepath.Join(configHome, "kicad")
	}

	for _, version := range kicadVersions {
		versioned := filepath.Join(base, version)
		if dirExists(versioned) {
			return versioned, true
		}
	}
	if dirExists(base) {
		return base, true
	}
	return "", false
}

// SystemLibraryPaths returns the existing library base directories: any
// configured via environment variables first, then the platform's install
// locations.
func SystemLibraryPaths() []string {
	var paths []string

	for _, envVar := range symbolDirEnvVars {
		if p := os.Getenv(envVar); p != "" && dirExists(p) {
			paths = append(paths, p)
		}
	}

	for _, share := range platformShareDirs() {
		for _, subdir := range []string{"symbols", "footprints", "3dmodels"} {
			libDir := filepath.Join(share, subdir)
			if dirExists(libDir) {
				paths = append(paths, libDir)
			}
		}
	}

	return paths
}

func platformShareDirs() []string {
	switch runtime.GOOS {
	case "windows":
		programFiles := os.Getenv("ProgramFiles")
		if programFiles == "" {
			programFiles = `C:\Program Files`
		}
		var shares []string
		for _, version := range kicadVersions {
			share := filepath.Join(programFiles, "KiCad", version, "share", "kicad")
			if dirExists(share) {
				shares = append(shares, share)
			}
		}
		return shares

	case "darwin":
		return []string{"/Applications/KiCad/KiCad.app/Contents/SharedSupport"}

	default:
		return []string{"/usr/share/kicad", "/usr/local/share/kicad"}
	}
}

// FindSymbolLibraries lists every .kicad_sym file under the system symbol
// directories, sorted by path.
func FindSymbolLibraries() []string {
	var libraries []string

	for _, base := range SystemLibraryPaths() {
		if filepath.Base(base) != "symbols" {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(base, "*.kicad_sym"))
		if err != nil {
			continue
		}
		libraries = append(libraries, matches...)
	}

	sort.Strings(libraries)
	return libraries
}

// FindFootprintLibraries lists every .pretty directory under the system
// footprint directories, sorted by path.
func FindFootprintLibraries() []string {
	var libraries []string

	for _, base := range SystemLibraryPaths() {
		if filepath.Base(base) != "footprints" {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(base, "*.pretty"))
		if err != nil {
			continue
		}
		for _, m := range matches {
			if dirExists(m) {
				libraries = append(libraries, m)
			}
		}
	}

	sort.Strings(libraries)
	return libraries
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
