package importer

import (
	"regexp"
	"strconv"
	"strings"
)

// EpisodeNumbers is the season/episode identity parsed from one file name.
type EpisodeNumbers struct {
	Season   int
	Episodes []int
}

var (
	// S01E02, s01.e02, S01E01E02, S01E01-E03
	seasonEpisodePattern = regexp.MustCompile(`(?i)\bs(\d{1,2})[ ._-]?e(\d{1,3})((?:[-_. ]?e\d{1,3})*)\b`)
	extraEpisodePattern  = regexp.MustCompile(`(?i)e(\d{1,3})`)
	// 1x02, 01x02
	crossPattern = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`)
)

// ParseEpisodeNumbers extracts season and episode numbers from a release or
// file name. Multi-episode files (S01E01E02, S01E01-E02) yield every episode
// in the span's explicit list. The second return reports whether anything
// was recognized.
func ParseEpisodeNumbers(name string) (EpisodeNumbers, bool) {
	base := strings.TrimSuffix(name, extOf(name))

	if match := seasonEpisodePattern.FindStringSubmatch(base); match != nil {
		season, _ := strconv.Atoi(match[1])
		first, _ := strconv.Atoi(match[2])
		result := EpisodeNumbers{Season: season, Episodes: []int{first}}
		for _, extra := range extraEpisodePattern.FindAllStringSubmatch(match[3], -1) {
			episode, _ := strconv.Atoi(extra[1])
			result.Episodes = append(result.Episodes, episode)
		}
		return result, true
	}

	if match := crossPattern.FindStringSubmatch(base); match != nil {
		season, _ := strconv.Atoi(match[1])
		episode, _ := strconv.Atoi(match[2])
		return EpisodeNumbers{Season: season, Episodes: []int{episode}}, true
	}

	return EpisodeNumbers{}, false
}

func extOf(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		return name[idx:]
	}
	return ""
}
