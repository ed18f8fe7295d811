// Package ingest loads the condominium articles of the Civil Code into the
// statute index.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"condolex-backend/models"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/text/encoding/charmap"
)

const (
	// CivilCodeURL is the consolidated Civil Code published by Planalto
	CivilCodeURL = "https://www.planalto.gov.br/ccivil_03/leis/2002/L10406.htm"
	CivilCodeLaw = "Código Civil"

	// Condominium articles
	FirstArticle = 1314
	LastArticle  = 1358

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

var (
	// Planalto writes article numbers with a thousands separator: "Art. 1.331-A."
	articleHeaderRe = regexp.MustCompile(`(?m)^[ \t]*Art\.\s*1\.(\d{3})(?:-([A-Z]))?`)
	struckRe        = regexp.MustCompile(`~{1,2}[^~]+~{1,2}`)
	emphasisRe      = regexp.MustCompile(`\*{1,2}|_{2}`)
	escapeRe        = regexp.MustCompile(`\\([\\.\-*_#+\[\]()>!])`)
	blankLinesRe    = regexp.MustCompile(`\n{3,}`)
)

// Fetch downloads url and decodes it from ISO-8859-1
func Fetch(ctx context.Context, client *http.Client, url string) (string, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: status %d", url, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("failed to decode page: %w", err)
	}
	return string(decoded), nil
}

// HTMLToText converts the page to plain text, dropping revoked (struck) wording
func HTMLToText(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", err
	}

	text := struckRe.ReplaceAllString(markdown, "")
	text = emphasisRe.ReplaceAllString(text, "")
	text = escapeRe.ReplaceAllString(text, "$1")
	text = strings.ReplaceAll(text, "\u00a0", " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(text, "\n\n")), nil
}

// ExtractArticles splits text into articles and keeps those numbered within
// [first, last], lettered variants included. When an article appears more
// than once the last occurrence wins, which on Planalto is the current wording.
func ExtractArticles(text string, first, last int) []models.StatuteArticle {
	headers := articleHeaderRe.FindAllStringSubmatchIndex(text, -1)

	byNumber := make(map[string]models.StatuteArticle)
	for i, h := range headers {
		end := len(text)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}

		n, err := strconv.Atoi(text[h[2]:h[3]])
		if err != nil {
			continue
		}
		n += 1000
		if n < first || n > last {
			continue
		}

		number := strconv.Itoa(n)
		if h[4] >= 0 {
			number += "-" + text[h[4]:h[5]]
		}

		byNumber[number] = models.StatuteArticle{
			ArticleNumber: number,
			Text:          strings.TrimSpace(text[h[0]:end]),
			Law:           CivilCodeLaw,
			SourceURL:     CivilCodeURL,
			Metadata: map[string]interface{}{
				"article": n,
			},
		}
	}

	articles := make([]models.StatuteArticle, 0, len(byNumber))
	for _, a := range byNumber {
		articles = append(articles, a)
	}
	sort.Slice(articles, func(i, j int) bool {
		return articleLess(articles[i].ArticleNumber, articles[j].ArticleNumber)
	})
	return articles
}

// articleLess orders "1331" before "1331-A" before "1332"
func articleLess(a, b string) bool {
	an, as, _ := strings.Cut(a, "-")
	bn, bs, _ := strings.Cut(b, "-")
	ai, _ := strconv.Atoi(an)
	bi, _ := strconv.Atoi(bn)
	if ai != bi {
		return ai < bi
	}
	return as < bs
}
