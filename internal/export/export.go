package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/showcall/backend/internal/production"
)

// Format selects the export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ErrUnknownFormat indicates a format outside json/csv.
var ErrUnknownFormat = errors.New("export: unknown format")

var csvHeader = []string{"User", "Timecode", "Cue", "Frame Rate", "Act", "Text", "Tags", "Comments", "Timestamp"}

// Participant summarises a connected participant.
type Participant struct {
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Input is everything an export can contain.
type Input struct {
	Notes        []production.Note
	Tags         []production.Tag
	Participants []Participant
	Cue          string
	Act          string
	TimeMode     production.TimeMode
	ExportedAt   time.Time
}

// Document is the JSON export layout.
type Document struct {
	Metadata     Metadata          `json:"metadata"`
	Notes        []production.Note `json:"notes"`
	Tags         []production.Tag  `json:"tags"`
	Participants []Participant     `json:"participants"`
}

type Metadata struct {
	ExportedAt time.Time           `json:"exportedAt"`
	NoteCount  int                 `json:"noteCount"`
	Cue        string              `json:"currentCue"`
	Act        string              `json:"currentAct"`
	TimeMode   production.TimeMode `json:"timeMode"`
}

// Result is a rendered export ready to send or download.
type Result struct {
	Format      Format
	Filename    string
	ContentType string
	Content     []byte
}

// Render encodes the input in the requested format.
func Render(format Format, input Input) (Result, error) {
	stamp := input.ExportedAt.UTC().Format("20060102_150405")
	switch format {
	case FormatJSON:
		content, err := renderJSON(input)
		if err != nil {
			return Result{}, err
		}
		return Result{Format: format, Filename: fmt.Sprintf("notes_%s.json", stamp), ContentType: "application/json", Content: content}, nil
	case FormatCSV:
		content, err := renderCSV(input)
		if err != nil {
			return Result{}, err
		}
		return Result{Format: format, Filename: fmt.Sprintf("notes_%s.csv", stamp), ContentType: "text/csv", Content: content}, nil
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func renderJSON(input Input) ([]byte, error) {
	document := Document{
		Metadata: Metadata{
			ExportedAt: input.ExportedAt.UTC(),
			NoteCount:  len(input.Notes),
			Cue:        input.Cue,
			Act:        input.Act,
			TimeMode:   input.TimeMode,
		},
		Notes:        nonNil(input.Notes),
		Tags:         nonNil(input.Tags),
		Participants: nonNil(input.Participants),
	}
	return json.MarshalIndent(document, "", "  ")
}

// renderCSV writes one row per note. encoding/csv doubles embedded quotes.
func renderCSV(input Input) ([]byte, error) {
	tagNames := make(map[string]string, len(input.Tags))
	for _, tag := range input.Tags {
		tagNames[tag.ID] = tag.Name
	}

	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)
	if err := writer.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, note := range input.Notes {
		tags := make([]string, 0, len(note.Tags))
		for _, id := range note.Tags {
			if name, ok := tagNames[id]; ok {
				tags = append(tags, name)
				continue
			}
			tags = append(tags, id)
		}
		comments := make([]string, 0, len(note.Comments))
		for _, comment := range note.Comments {
			comments = append(comments, fmt.Sprintf("%s: %s", comment.AuthorName, comment.Text))
		}
		row := []string{
			note.AuthorName,
			note.Timecode.Format(),
			note.CueLabel,
			note.FrameRate.String(),
			note.ActLabel,
			note.Text,
			strings.Join(tags, ", "),
			strings.Join(comments, "; "),
			note.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
