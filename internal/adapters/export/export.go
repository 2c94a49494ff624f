// Package export renders roster views for printing and download.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"roster/pkg/domain"
)

// Format names a rendering of the roster.
type Format string

const (
	FormatHTML Format = "html"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Formats lists the supported formats, HTML first as the print default.
func Formats() []Format {
	return []Format{FormatHTML, FormatCSV, FormatJSON, FormatYAML}
}

// ParseFormat accepts a supported format name; empty means HTML.
func ParseFormat(raw string) (Format, error) {
	if raw == "" {
		return FormatHTML, nil
	}
	f := Format(strings.ToLower(raw))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported export format %s", raw)
}

// Document is the roster view being rendered.
type Document struct {
	Title       string
	GeneratedAt time.Time
	Employees   []domain.Employee
	// ImageURL maps a profile image payload to a displayable URL; nil keeps
	// the payload as is.
	ImageURL func(payload string) string
}

// Artifact is a rendered document.
type Artifact struct {
	Format      Format
	ContentType string
	Filename    string
	Payload     []byte
}

// Render produces the document in format.
func Render(format Format, doc Document) (Artifact, error) {
	if doc.Title == "" {
		doc.Title = "Employee List"
	}
	if doc.GeneratedAt.IsZero() {
		doc.GeneratedAt = time.Now().UTC()
	}
	var (
		payload     []byte
		contentType string
		err         error
	)
	switch format {
	case FormatHTML:
		payload, err = renderHTML(doc)
		contentType = "text/html; charset=utf-8"
	case FormatCSV:
		payload, err = renderCSV(doc)
		contentType = "text/csv"
	case FormatJSON:
		payload, err = json.MarshalIndent(nonNil(doc.Employees), "", "  ")
		contentType = "application/json"
	case FormatYAML:
		payload, err = yaml.Marshal(toYAML(doc.Employees))
		contentType = "application/yaml"
	default:
		return Artifact{}, fmt.Errorf("unsupported export format %s", format)
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("render %s: %w", format, err)
	}
	return Artifact{
		Format:      format,
		ContentType: contentType,
		Filename:    "employees." + string(format),
		Payload:     payload,
	}, nil
}

func nonNil(list []domain.Employee) []domain.Employee {
	if list == nil {
		return []domain.Employee{}
	}
	return list
}

var csvHeader = []string{"ID", "Name", "Gender", "DOB", "State", "Status", "Profile"}

func renderCSV(doc Document) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, e := range doc.Employees {
		record := []string{e.ID, e.FullName, string(e.Gender), e.DOB, e.State, e.StatusLabel(), profileRef(e.ProfileImage)}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// profileRef keeps CSV cells small by eliding inline image data.
func profileRef(payload string) string {
	if strings.HasPrefix(payload, "data:") {
		if i := strings.Index(payload, ";"); i > 0 {
			return payload[:i] + ";inline"
		}
		return "data:inline"
	}
	return payload
}

type yamlEmployee struct {
	ID           string `yaml:"id"`
	FullName     string `yaml:"fullName"`
	Gender       string `yaml:"gender"`
	DOB          string `yaml:"dob"`
	State        string `yaml:"state"`
	IsActive     bool   `yaml:"isActive"`
	ProfileImage string `yaml:"profileImage,omitempty"`
}

func toYAML(list []domain.Employee) map[string][]yamlEmployee {
	out := make([]yamlEmployee, 0, len(list))
	for _, e := range list {
		out = append(out, yamlEmployee{
			ID:           e.ID,
			FullName:     e.FullName,
			Gender:       string(e.Gender),
			DOB:          e.DOB,
			State:        e.State,
			IsActive:     e.IsActive,
			ProfileImage: e.ProfileImage,
		})
	}
	return map[string][]yamlEmployee{"employees": out}
}

type htmlRow struct {
	domain.Employee
	Image template.URL
}

var printTemplate = template.Must(template.New("print").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title>
<style>body{font-family:sans-serif}table{border-collapse:collapse;width:100%}th,td{border:1px solid #ddd;padding:6px;text-align:left}img{width:32px;height:32px;border-radius:50%}</style>
</head><body onload="window.print()">
<h1>{{.Title}}</h1>
<p>Generated {{.GeneratedAt.Format "2006-01-02 15:04 MST"}} &middot; {{len .Rows}} employees</p>
<table>
<thead><tr><th>ID</th><th>Profile</th><th>Name</th><th>Gender</th><th>DOB</th><th>State</th><th>Status</th></tr></thead>
<tbody>
{{- range .Rows}}
<tr><td>{{.ID}}</td><td>{{if .Image}}<img src="{{.Image}}" alt="{{.FullName}}">{{end}}</td><td>{{.FullName}}</td><td>{{.Gender}}</td><td>{{.DOB}}</td><td>{{.State}}</td><td>{{.StatusLabel}}</td></tr>
{{- else}}
<tr><td colspan="7">No employees found.</td></tr>
{{- end}}
</tbody></table></body></html>
`))

func renderHTML(doc Document) ([]byte, error) {
	rows := make([]htmlRow, 0, len(doc.Employees))
	for _, e := range doc.Employees {
		src := e.ProfileImage
		if doc.ImageURL != nil {
			src = doc.ImageURL(src)
		}
		rows = append(rows, htmlRow{Employee: e, Image: safeImageURL(src)})
	}
	buf := &bytes.Buffer{}
	err := printTemplate.Execute(buf, struct {
		Title       string
		GeneratedAt time.Time
		Rows        []htmlRow
	}{doc.Title, doc.GeneratedAt, rows})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// safeImageURL admits inline image data, http(s) and root-relative URLs.
func safeImageURL(src string) template.URL {
	switch {
	case strings.HasPrefix(src, "data:image/"),
		strings.HasPrefix(src, "https://"),
		strings.HasPrefix(src, "http://"),
		strings.HasPrefix(src, "/") && !strings.HasPrefix(src, "//"):
		return template.URL(src) // #nosec G203 - scheme allow-listed above
	default:
		return ""
	}
}
