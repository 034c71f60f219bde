package rutube

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/steadycast/steadycast/types"
)

var resolutionRe = regexp.MustCompile(`RESOLUTION=\d+x(\d+)`)

type rendition struct {
	height int
	uri    string
}

// selectRendition fetches the master manifest and returns the rendition URL
// whose height sits closest to the requested mode. Progressive mode maps to
// the lowest rendition.
func (e *Extractor) selectRendition(ctx context.Context, manifestURL string, mode types.QualityMode) (string, int, error) {
	resp, err := e.client.Get(ctx, manifestURL)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("manifest fetch: status %d", resp.StatusCode)
	}

	renditions, err := parseMasterManifest(resp.Body)
	if err != nil {
		return "", 0, err
	}
	if len(renditions) == 0 {
		return "", 0, fmt.Errorf("no renditions in manifest")
	}

	target := mode.Height()
	best := renditions[0]
	for _, r := range renditions[1:] {
		if target == 0 {
			// Progressive: lowest rendition.
			if r.height < best.height {
				best = r
			}
			continue
		}
		if abs(r.height-target) < abs(best.height-target) {
			best = r
		}
	}

	resolved, err := resolveManifestURI(manifestURL, best.uri)
	if err != nil {
		return "", 0, err
	}
	return resolved, best.height, nil
}

// parseMasterManifest scans #EXT-X-STREAM-INF entries and their URI lines.
func parseMasterManifest(r interface{ Read([]byte) (int, error) }) ([]rendition, error) {
	var out []rendition
	height := 0
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF"):
			height = 0
			if m := resolutionRe.FindStringSubmatch(line); len(m) == 2 {
				height, _ = strconv.Atoi(m[1])
			}
		case line == "" || strings.HasPrefix(line, "#"):
			// other tags and blanks
		default:
			if height > 0 {
				out = append(out, rendition{height: height, uri: line})
			}
			height = 0
		}
	}
	return out, sc.Err()
}

func resolveManifestURI(base, uri string) (string, error) {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return uri, nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	rel, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(rel).String(), nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
