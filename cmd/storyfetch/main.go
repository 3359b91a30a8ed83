// Command storyfetch bulk-downloads z-machine story files from the IF
// Archive's zcode index for offline use by cmd/conformance or
// cmd/mxyzptlk. Grounded on the teacher's cmd/scraper, restricted to
// the story versions this interpreter actually runs and extended to
// also pull each story's sibling Blorb resource file when the archive
// serves one alongside it.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const indexURL = "https://www.ifarchive.org/indexes/if-archive/games/zcode/"

var (
	outputDir    string
	fetchBlorbs  bool
	versionMatch = regexp.MustCompile(`\.z([12345678])$`)
)

// supportedVersions mirrors zmachine.SupportedVersions; kept as a
// local literal so this command doesn't need to import the VM just to
// filter a download list.
var supportedVersions = map[string]bool{"3": true, "4": true, "5": true, "7": true, "8": true}

func init() {
	flag.StringVar(&outputDir, "out", "stories", "directory to save downloaded stories into")
	flag.BoolVar(&fetchBlorbs, "blorbs", false, "also fetch each story's sibling .blorb resource file, if present")
	flag.Parse()
}

type game struct {
	name string
	url  string
}

func main() {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fmt.Printf("failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	c := &http.Client{Timeout: 30 * time.Second}
	games, err := listGames(c)
	if err != nil {
		fmt.Printf("failed to list games: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("found %d stories in supported versions\n", len(games))

	var downloaded, skipped, failed int
	for i, g := range games {
		destPath := filepath.Join(outputDir, g.name)
		if _, err := os.Stat(destPath); err == nil {
			fmt.Printf("[%d/%d] skipping %s (already exists)\n", i+1, len(games), g.name)
			skipped++
			continue
		}

		fmt.Printf("[%d/%d] downloading %s... ", i+1, len(games), g.name)
		data, err := fetch(c, g.url)
		if err != nil {
			fmt.Printf("failed: %v\n", err)
			failed++
			continue
		}
		if err := os.WriteFile(destPath, data, 0o644); err != nil {
			fmt.Printf("failed: %v\n", err)
			failed++
			continue
		}
		fmt.Printf("ok (%d bytes)\n", len(data))
		downloaded++

		if fetchBlorbs {
			fetchSiblingBlorb(c, g, destPath)
		}

		time.Sleep(100 * time.Millisecond)
	}

	fmt.Printf("\ndone. downloaded: %d, skipped: %d, failed: %d\n", downloaded, skipped, failed)
	writeManifest(games)
}

func listGames(c *http.Client) ([]game, error) {
	res, err := c.Get(indexURL)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		return nil, fmt.Errorf("bad status code: %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, err
	}

	var games []game
	doc.Find("dl dt").Each(func(i int, s *goquery.Selection) {
		href, exists := s.Find("a").Attr("href")
		if !exists {
			return
		}
		m := versionMatch.FindStringSubmatch(href)
		if m == nil || !supportedVersions[m[1]] {
			return
		}
		games = append(games, game{name: filepath.Base(href), url: "https://www.ifarchive.org" + href})
	})
	return games, nil
}

func fetch(c *http.Client, url string) ([]byte, error) {
	resp, err := c.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// fetchSiblingBlorb tries the story's .blorb alongside its story file;
// most archive entries don't have one, so a 404 is silently skipped.
func fetchSiblingBlorb(c *http.Client, g game, storyDestPath string) {
	blorbURL := strings.TrimSuffix(g.url, filepath.Ext(g.url)) + ".blorb"
	data, err := fetch(c, blorbURL)
	if err != nil {
		return
	}
	dest := strings.TrimSuffix(storyDestPath, filepath.Ext(storyDestPath)) + ".blorb"
	if err := os.WriteFile(dest, data, 0o644); err == nil {
		fmt.Printf("    also fetched %s\n", filepath.Base(dest))
	}
}

func writeManifest(games []game) {
	manifestPath := filepath.Join(outputDir, "manifest.txt")
	var manifest strings.Builder
	for _, g := range games {
		manifest.WriteString(g.name + "\n")
	}
	if err := os.WriteFile(manifestPath, []byte(manifest.String()), 0o644); err != nil {
		fmt.Printf("failed to write manifest: %v\n", err)
		return
	}
	fmt.Printf("wrote manifest to %s\n", manifestPath)
}
