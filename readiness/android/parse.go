package android

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var wmSizeRe = regexp.MustCompile(`(Physical|Override) size:\s*(\d+)x(\d+)`)

// parseWmSize reads `wm size` output. An override size wins over the physical one.
func parseWmSize(output string) (int, int, error) {
	var width, height int
	found := false
	for _, m := range wmSizeRe.FindAllStringSubmatch(output, -1) {
		w, _ := strconv.Atoi(m[2])
		h, _ := strconv.Atoi(m[3])
		if !found || m[1] == "Override" {
			width, height, found = w, h, true
		}
	}
	if !found {
		return 0, 0, errors.Errorf("unexpected wm size output: %q", strings.TrimSpace(output))
	}
	return width, height, nil
}

var wmDensityRe = regexp.MustCompile(`(Physical|Override) density:\s*(\d+)`)

func parseWmDensity(output string) int {
	density := 0
	for _, m := range wmDensityRe.FindAllStringSubmatch(output, -1) {
		d, _ := strconv.Atoi(m[2])
		if density == 0 || m[1] == "Override" {
			density = d
		}
	}
	return density
}

// parseScreenOn reads `dumpsys power` output.
func parseScreenOn(output string) (bool, bool) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "mWakefulness="):
			return strings.TrimPrefix(line, "mWakefulness=") == "Awake", true
		case strings.HasPrefix(line, "Display Power: state="):
			return strings.TrimPrefix(line, "Display Power: state=") == "ON", true
		case strings.HasPrefix(line, "mScreenOn="):
			return strings.TrimPrefix(line, "mScreenOn=") == "true", true
		}
	}
	return false, false
}

// parseFocusedPackage extracts the package of the focused window from
// `dumpsys window` output, e.g.
// mCurrentFocus=Window{3c1d u0 com.instagram.android/com.instagram.mainactivity.MainActivity}
func parseFocusedPackage(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.Contains(line, "mCurrentFocus") && !strings.Contains(line, "mFocusedApp") {
			continue
		}
		for _, field := range strings.Fields(strings.Trim(line, "{}")) {
			field = strings.TrimRight(field, "}")
			if idx := strings.Index(field, "/"); idx > 0 {
				return field[:idx]
			}
		}
	}
	return ""
}
