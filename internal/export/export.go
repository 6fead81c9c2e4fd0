package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/jimezsa/indeedhub/internal/models"
	"github.com/jimezsa/indeedhub/internal/ui"
	"github.com/muesli/termenv"
)

type Format string

const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
	FormatTSV      Format = "tsv"
)

type WriteOptions struct {
	ColorEnabled bool
	Hyperlinks   bool
	LinkStyle    LinkStyle
	// Details prints a full-text panel under the table for every record.
	Details bool
}

type LinkStyle string

const (
	LinkStyleShort LinkStyle = "short"
	LinkStyleFull  LinkStyle = "full"
)

var errBadHeader = errors.New("unexpected csv header")

func WriteJobs(w io.Writer, jobs []models.Job, format Format, opts WriteOptions) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, jobs)
	case FormatCSV:
		return writeCSV(w, jobs, ',')
	case FormatTSV:
		return writeCSV(w, jobs, '\t')
	case FormatMarkdown:
		return writeMarkdown(w, jobs)
	default:
		return writeTable(w, jobs, opts)
	}
}

func writeJSON(w io.Writer, jobs []models.Job) error {
	if jobs == nil {
		jobs = []models.Job{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jobs)
}

func writeCSV(w io.Writer, jobs []models.Job, delim rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = delim
	if err := writer.Write(csvHeader()); err != nil {
		return err
	}
	for _, job := range jobs {
		if err := writer.Write(csvRow(job)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadCSV parses output written in the csv format back into records.
func ReadCSV(r io.Reader) ([]models.Job, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader())

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []models.Job{}, nil
		}
		return nil, err
	}
	for i, name := range csvHeader() {
		if strings.TrimPrefix(header[i], "\ufeff") != name {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", errBadHeader, i+1, header[i], name)
		}
	}

	jobs := []models.Job{}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, models.Job{
			Title:       row[0],
			Company:     row[1],
			Link:        row[2],
			Description: row[3],
		})
	}
	return jobs, nil
}

func writeTable(w io.Writer, jobs []models.Job, opts WriteOptions) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(tableHeader(), "\t"))
	output := termenv.NewOutput(w)
	for _, job := range jobs {
		fmt.Fprintln(tw, strings.Join(tableRow(job, output, opts), "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !opts.Details {
		return nil
	}
	for _, job := range jobs {
		if err := writePanel(w, job, output, opts); err != nil {
			return err
		}
	}
	return nil
}

func writePanel(w io.Writer, job models.Job, output *termenv.Output, opts WriteOptions) error {
	title := ui.Emphasize(output, opts.ColorEnabled, safe(job.Title))
	rule := strings.Repeat("-", 60)
	lines := []string{
		"",
		rule,
		title,
		rule,
		"Company: " + safe(job.Company),
		"Link: " + linkText(job.Link, output, WriteOptions{
			ColorEnabled: opts.ColorEnabled,
			Hyperlinks:   opts.Hyperlinks,
			LinkStyle:    LinkStyleFull,
		}),
		"",
		safe(job.Description),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeMarkdown(w io.Writer, jobs []models.Job) error {
	if len(jobs) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}
	for i, job := range jobs {
		linkLine := "Link: " + models.LinkUnavailable
		if link := safe(job.Link); link != "" && link != models.LinkUnavailable {
			linkLine = fmt.Sprintf("Link: [Open listing](<%s>)", link)
		}
		lines := []string{
			fmt.Sprintf("## %s", safe(job.Title)),
			"",
			fmt.Sprintf("Company: **%s**", safe(job.Company)),
			"",
			linkLine,
			"",
			"<details>",
			"<summary>Full description</summary>",
			"",
			safe(job.Description),
			"",
			"</details>",
		}
		if i < len(jobs)-1 {
			lines = append(lines, "")
		}
		for _, line := range lines {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

func csvHeader() []string {
	return []string{
		"Job Title",
		"Company",
		"Link",
		"Full Description",
	}
}

func csvRow(job models.Job) []string {
	return []string{
		job.Title,
		job.Company,
		job.Link,
		job.Description,
	}
}

func safe(value string) string {
	return strings.TrimSpace(value)
}

func tableHeader() []string {
	return []string{
		"Job Title",
		"Company",
		"Link",
	}
}

func tableRow(job models.Job, output *termenv.Output, opts WriteOptions) []string {
	return []string{
		oneLine(job.Title),
		oneLine(job.Company),
		linkText(job.Link, output, opts),
	}
}

func linkText(raw string, output *termenv.Output, opts WriteOptions) string {
	link := safe(raw)
	if link == "" || link == models.LinkUnavailable {
		return models.LinkUnavailable
	}
	display := link
	if opts.LinkStyle == LinkStyleShort && opts.Hyperlinks {
		display = shortURLLabel(link)
	}
	display = ui.ColorizeLink(output, opts.ColorEnabled, display)
	if opts.Hyperlinks {
		display = hyperlink(link, display)
	}
	return display
}

// oneLine keeps tab and newline characters out of table cells.
func oneLine(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func hyperlink(url string, text string) string {
	const esc = "\x1b"
	return esc + "]8;;" + url + esc + "\\" + text + esc + "]8;;" + esc + "\\"
}

func shortURLLabel(raw string) string {
	const maxLen = 60
	label := strings.TrimSpace(raw)
	if parsed, err := url.Parse(raw); err == nil {
		host := strings.TrimPrefix(parsed.Host, "www.")
		if host != "" {
			label = host + parsed.Path
		}
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = raw
	}
	if len(label) > maxLen {
		label = label[:maxLen-3] + "..."
	}
	return label
}
