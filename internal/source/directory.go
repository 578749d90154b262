package source

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lenilani/leadscout/internal/fetcher"
	"github.com/lenilani/leadscout/internal/model"
)

// DirectorySource reads a configured business-directory export (a
// chamber-of-commerce style dump) over HTTP, FTP, or from a local file.
// CSV and XLSX are supported, chosen by extension. Rows are mapped by
// header name, and the query narrows rows by substring so repeated
// queries don't re-present the whole file every pass.
type DirectorySource struct {
	url  string
	http *fetcher.HTTPFetcher
	ftp  *fetcher.FTPFetcher
}

// NewDirectory creates a directory source for the given export URL or path.
func NewDirectory(rawURL string, httpFetcher *fetcher.HTTPFetcher, ftpFetcher *fetcher.FTPFetcher) *DirectorySource {
	return &DirectorySource{url: rawURL, http: httpFetcher, ftp: ftpFetcher}
}

// Name implements Source.
func (s *DirectorySource) Name() string { return "directory" }

// directoryColumns indexes the header columns we know how to map. A value
// of -1 means the export has no such column.
type directoryColumns struct {
	name      int
	website   int
	email     int
	phone     int
	industry  int
	location  int
	employees int
}

var directoryHeaderNames = map[string]func(*directoryColumns, int){
	"company":        func(c *directoryColumns, i int) { c.name = i },
	"company name":   func(c *directoryColumns, i int) { c.name = i },
	"company_name":   func(c *directoryColumns, i int) { c.name = i },
	"name":           func(c *directoryColumns, i int) { c.name = i },
	"business":       func(c *directoryColumns, i int) { c.name = i },
	"business name":  func(c *directoryColumns, i int) { c.name = i },
	"member":         func(c *directoryColumns, i int) { c.name = i },
	"website":        func(c *directoryColumns, i int) { c.website = i },
	"url":            func(c *directoryColumns, i int) { c.website = i },
	"web":            func(c *directoryColumns, i int) { c.website = i },
	"email":          func(c *directoryColumns, i int) { c.email = i },
	"contact email":  func(c *directoryColumns, i int) { c.email = i },
	"phone":          func(c *directoryColumns, i int) { c.phone = i },
	"telephone":      func(c *directoryColumns, i int) { c.phone = i },
	"contact phone":  func(c *directoryColumns, i int) { c.phone = i },
	"industry":       func(c *directoryColumns, i int) { c.industry = i },
	"category":       func(c *directoryColumns, i int) { c.industry = i },
	"type":           func(c *directoryColumns, i int) { c.industry = i },
	"business type":  func(c *directoryColumns, i int) { c.industry = i },
	"location":       func(c *directoryColumns, i int) { c.location = i },
	"address":        func(c *directoryColumns, i int) { c.location = i },
	"city":           func(c *directoryColumns, i int) { c.location = i },
	"island":         func(c *directoryColumns, i int) { c.location = i },
	"employees":      func(c *directoryColumns, i int) { c.employees = i },
	"employee count": func(c *directoryColumns, i int) { c.employees = i },
	"employee_count": func(c *directoryColumns, i int) { c.employees = i },
	"staff":          func(c *directoryColumns, i int) { c.employees = i },
	"size":           func(c *directoryColumns, i int) { c.employees = i },
}

func mapDirectoryHeader(header []string) (directoryColumns, error) {
	cols := directoryColumns{name: -1, website: -1, email: -1, phone: -1, industry: -1, location: -1, employees: -1}
	for i, cell := range header {
		key := strings.ToLower(strings.TrimSpace(cell))
		key = strings.ReplaceAll(key, "_", " ")
		if set, ok := directoryHeaderNames[key]; ok {
			set(&cols, i)
		}
	}
	if cols.name == -1 {
		return cols, eris.Errorf("source: directory export has no company column (header %v)", header)
	}
	return cols, nil
}

// Search implements Source.
func (s *DirectorySource) Search(ctx context.Context, query string) ([]model.Candidate, error) {
	if s.url == "" {
		return nil, eris.New("source: directory url not configured")
	}

	header, rows, err := s.readRows(ctx)
	if err != nil {
		return nil, err
	}

	cols, err := mapDirectoryHeader(header)
	if err != nil {
		return nil, err
	}

	terms := queryTerms(query)

	var candidates []model.Candidate
	for _, row := range rows {
		c := model.Candidate{
			Name:          cell(row, cols.name),
			Website:       cell(row, cols.website),
			Email:         cell(row, cols.email),
			Phone:         cell(row, cols.phone),
			Industry:      cell(row, cols.industry),
			Location:      cell(row, cols.location),
			EmployeeCount: parseEmployees(cell(row, cols.employees)),
			Source:        s.Name(),
		}
		if c.Name == "" {
			continue
		}
		if !matchesTerms(c, terms) {
			continue
		}
		candidates = append(candidates, c)
	}

	zap.L().Debug("directory search complete",
		zap.String("query", query),
		zap.Int("rows", len(rows)),
		zap.Int("candidates", len(candidates)),
	)

	return candidates, nil
}

// readRows loads the export and returns the header row plus all data rows.
func (s *DirectorySource) readRows(ctx context.Context) ([]string, [][]string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "source: parse directory url %s", s.url)
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" {
		ext = strings.ToLower(path.Ext(s.url))
	}

	switch ext {
	case ".csv":
		return s.readCSV(ctx, u)
	case ".xlsx":
		return s.readXLSX(ctx, u)
	default:
		return nil, nil, eris.Errorf("source: unsupported directory format %q", ext)
	}
}

func (s *DirectorySource) readCSV(ctx context.Context, u *url.URL) ([]string, [][]string, error) {
	var rc io.ReadCloser

	switch u.Scheme {
	case "http", "https", "ftp":
		f, err := fetcher.ForURL(s.url, s.http, s.ftp)
		if err != nil {
			return nil, nil, err
		}
		body, err := f.Download(ctx, s.url)
		if err != nil {
			return nil, nil, err
		}
		rc = body
	case "", "file":
		fh, err := os.Open(u.Path)
		if err != nil {
			return nil, nil, eris.Wrap(err, "source: open directory file")
		}
		rc = fh
	default:
		return nil, nil, eris.Errorf("source: unsupported scheme %q", u.Scheme)
	}
	defer rc.Close() //nolint:errcheck

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, rc, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for streamErr := range errCh {
		if streamErr != nil {
			return nil, nil, streamErr
		}
	}

	var header []string
	select {
	case header = <-headerCh:
	default:
		return nil, nil, eris.New("source: directory export is empty")
	}

	return header, rows, nil
}

func (s *DirectorySource) readXLSX(ctx context.Context, u *url.URL) ([]string, [][]string, error) {
	filePath := u.Path

	switch u.Scheme {
	case "http", "https", "ftp":
		f, err := fetcher.ForURL(s.url, s.http, s.ftp)
		if err != nil {
			return nil, nil, err
		}

		tmp, err := os.CreateTemp("", "leadscout-directory-*.xlsx")
		if err != nil {
			return nil, nil, eris.Wrap(err, "source: create temp file")
		}
		tmpPath := tmp.Name()
		_ = tmp.Close()
		defer os.Remove(tmpPath) //nolint:errcheck

		if _, err := f.DownloadToFile(ctx, s.url, tmpPath); err != nil {
			return nil, nil, err
		}
		filePath = tmpPath
	case "", "file":
		// read in place
	default:
		return nil, nil, eris.Errorf("source: unsupported scheme %q", u.Scheme)
	}

	all, err := fetcher.ReadXLSX(filePath, fetcher.XLSXOptions{})
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, eris.New("source: directory export is empty")
	}

	return all[0], all[1:], nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// queryTerms extracts the meaningful tokens from a query for row narrowing.
// Short tokens and the state marker carry no signal against a statewide
// export.
func queryTerms(query string) []string {
	var terms []string
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if len(tok) < 3 || tok == "hi" {
			continue
		}
		terms = append(terms, tok)
	}
	return terms
}

func matchesTerms(c model.Candidate, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	text := strings.ToLower(c.Name + " " + c.Industry + " " + c.Location)
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// parseEmployees reads the leading integer from an employee-count cell.
// Exports write these as "25", "25+", or ranges like "10-50"; the first
// number is the usable signal.
func parseEmployees(v string) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}

	end := 0
	for end < len(v) && unicode.IsDigit(rune(v[end])) {
		end++
	}
	if end == 0 {
		return 0
	}

	n, err := strconv.Atoi(v[:end])
	if err != nil {
		return 0
	}
	return n
}
