package pathmap

import (
	"testing"

	"berth/internal/config"
)

func TestTranslateExactMapping(t *testing.T) {
	tr := New([]config.PathMapping{
		{Remote: "/data/torrents/complete", Local: "/mnt/downloads/complete"},
	})

	res := tr.Translate("/data/torrents/complete/Some.Release.2024/file.mkv")
	if !res.Exact() {
		t.Fatalf("match = %q, want exact", res.Match)
	}
	if res.Path != "/mnt/downloads/complete/Some.Release.2024/file.mkv" {
		t.Fatalf("path = %q", res.Path)
	}
}

func TestTranslateCollapsesDuplicatedSegment(t *testing.T) {
	tr := New([]config.PathMapping{
		{Remote: "/data/done", Local: "/mnt/downloads/complete"},
	})

	res := tr.Translate("/data/done/complete/Show.S01/file.mkv")
	if !res.Exact() {
		t.Fatalf("match = %q, want exact", res.Match)
	}
	if res.Path != "/mnt/downloads/complete/Show.S01/file.mkv" {
		t.Fatalf("doubled segment not collapsed: %q", res.Path)
	}
}

func TestTranslateBaseItself(t *testing.T) {
	tr := New([]config.PathMapping{
		{Remote: "/data/done", Local: "/mnt/done"},
	})
	res := tr.Translate("/data/done")
	if !res.Exact() || res.Path != "/mnt/done" {
		t.Fatalf("res = %+v", res)
	}
}

func TestTranslateWindowsStylePath(t *testing.T) {
	tr := New([]config.PathMapping{
		{Remote: `C:\Downloads\Complete`, Local: "/mnt/downloads/complete"},
	})
	res := tr.Translate(`C:\Downloads\Complete\Release\file.mkv`)
	if !res.Exact() {
		t.Fatalf("match = %q, want exact", res.Match)
	}
	if res.Path != "/mnt/downloads/complete/Release/file.mkv" {
		t.Fatalf("path = %q", res.Path)
	}
}

func TestTranslateAnchorHeuristic(t *testing.T) {
	tr := New([]config.PathMapping{
		{Remote: "/srv/other", Local: "/mnt/media/downloads"},
	})

	res := tr.Translate("/home/seed/downloads/Release.Name/file.mkv")
	if res.Match != MatchAnchor {
		t.Fatalf("match = %q, want anchor", res.Match)
	}
	if res.Path != "/mnt/media/downloads/Release.Name/file.mkv" {
		t.Fatalf("path = %q", res.Path)
	}
	if res.Exact() {
		t.Fatal("heuristic result must not be tagged exact")
	}
}

func TestTranslateSuffixHeuristic(t *testing.T) {
	tr := New([]config.PathMapping{
		{Remote: "/unrelated", Local: "/mnt/pool/seedbox/staging"},
	})

	res := tr.Translate("/remote/seedbox/staging/Release/file.mkv")
	if res.Match != MatchSuffix {
		t.Fatalf("match = %q, want suffix", res.Match)
	}
	if res.Path != "/mnt/pool/seedbox/staging/Release/file.mkv" {
		t.Fatalf("path = %q", res.Path)
	}
}

func TestTranslateNoMappingsReturnsUnchanged(t *testing.T) {
	tr := New(nil)
	res := tr.Translate("/data/done/file.mkv")
	if res.Match != MatchNone {
		t.Fatalf("match = %q, want none", res.Match)
	}
	if res.Path != "/data/done/file.mkv" {
		t.Fatalf("path = %q", res.Path)
	}
	if tr.HasMappings() {
		t.Fatal("HasMappings should be false")
	}
}

func TestTranslateNoMatchReturnsUnchanged(t *testing.T) {
	tr := New([]config.PathMapping{
		{Remote: "/data/done", Local: "/mnt/done"},
	})
	res := tr.Translate("/elsewhere/thing/file.mkv")
	if res.Match != MatchNone {
		t.Fatalf("match = %q, want none", res.Match)
	}
	if res.Path != "/elsewhere/thing/file.mkv" {
		t.Fatalf("path = %q", res.Path)
	}
}

func TestTranslateIncompleteArea(t *testing.T) {
	tr := New([]config.PathMapping{
		{Remote: "/data/incomplete", Local: "/mnt/downloads/incomplete", Area: "incomplete"},
		{Remote: "/data/complete", Local: "/mnt/downloads/complete"},
	})
	res := tr.Translate("/data/incomplete/Partial.Release")
	if !res.Exact() || res.Path != "/mnt/downloads/incomplete/Partial.Release" {
		t.Fatalf("res = %+v", res)
	}
}
