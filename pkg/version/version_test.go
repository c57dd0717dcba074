package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	info := Info()

	for _, key := range []string{"version", "commit", "build_date", "go_version"} {
		if info[key] == "" {
			t.Errorf("Info()[%q] is empty", key)
		}
	}
	if info["go_version"] != runtime.Version() {
		t.Errorf("go_version = %s, want %s", info["go_version"], runtime.Version())
	}
}

func TestInfoOverrides(t *testing.T) {
	oldVersion, oldCommit := BuildVersion, BuildCommit
	defer func() { BuildVersion, BuildCommit = oldVersion, oldCommit }()

	BuildVersion = "1.2.3"
	BuildCommit = "abc1234"

	info := Info()
	if info["version"] != "1.2.3" || info["commit"] != "abc1234" {
		t.Errorf("unexpected info %v", info)
	}
	if s := String(); !strings.HasPrefix(s, "ecoroute 1.2.3 (commit abc1234") {
		t.Errorf("unexpected String() %q", s)
	}
}
